package entitylog

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/kjk/entitystore/require"
	"pgregory.net/rapid"
)

type testRecord struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	DateAdded time.Time `json:"date_added"`
}

var testTime = time.Date(2025, 6, 1, 10, 30, 15, 123456789, time.UTC)

func testRecords() []testRecord {
	return []testRecord{
		{ID: 1, Name: "Laptop", Quantity: 5, DateAdded: testTime},
		{ID: 2, Name: "Phone", Quantity: 10, DateAdded: testTime.Add(time.Hour)},
	}
}

func saveTestLog(t *testing.T, path string, recs ...testRecord) *Log[testRecord] {
	t.Helper()
	l := New[testRecord](path)
	l.AddAll(recs...)
	require.NoError(t, l.SaveToFile())
	return l
}

func requireNoTempFiles(t *testing.T, dir string, exp int) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Len(t, names, exp, "files: %v", names)
}

func requirePersistenceError(t *testing.T, err error, op string) *PersistenceError {
	t.Helper()
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	require.ErrorIs(t, err, ErrPersistence)
	require.Equal(t, op, perr.Op)
	return perr
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	saveTestLog(t, path, testRecords()...)

	l := New[testRecord](path)
	require.NoError(t, l.LoadFromFile())
	require.Equal(t, testRecords(), l.GetAll())
}

func TestRoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	exts := map[string]Compression{
		".json":      CompressionNone,
		".json.gz":   CompressionGzip,
		".json.zst":  CompressionZstd,
		".json.zstd": CompressionZstd,
		".json.br":   CompressionBrotli,
	}
	plain, err := json.Marshal(testRecords())
	require.NoError(t, err)
	for ext, c := range exts {
		path := filepath.Join(dir, "inventory"+ext)
		require.Equal(t, c, CompressionForPath(path), "ext: %s", ext)
		saveTestLog(t, path, testRecords()...)

		d, err := os.ReadFile(path)
		require.NoError(t, err)
		isPlain := bytes.Equal(d, append(plain, '\n'))
		require.Equal(t, c == CompressionNone, isPlain, "ext: %s", ext)

		l := New[testRecord](path)
		require.NoError(t, l.LoadFromFile())
		require.Equal(t, testRecords(), l.GetAll(), "ext: %s", ext)
	}
	requireNoTempFiles(t, dir, len(exts))
	require.Equal(t, CompressionGzip, CompressionForPath("INVENTORY.JSON.GZ"))
	require.Equal(t, CompressionNone, CompressionForPath("inventory.toon"))
	require.Equal(t, "zstd", CompressionZstd.String())
}

func TestFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	saveTestLog(t, path, testRecords()[0])
	d, err := os.ReadFile(path)
	require.NoError(t, err)
	exp := `[{"id":1,"name":"Laptop","quantity":5,"date_added":"2025-06-01T10:30:15.123456789Z"}]` + "\n"
	require.Equal(t, exp, string(d))

	l := New[testRecord](path)
	l.Pretty = true
	l.Add(testRecords()[0])
	require.NoError(t, l.SaveToFile())
	d, err = os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(d), "\n  {"), "not indented: %s", d)

	l2 := New[testRecord](path)
	require.NoError(t, l2.LoadFromFile())
	require.Equal(t, testRecords()[:1], l2.GetAll())
}

func TestSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	l := saveTestLog(t, path)
	d, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]\n", string(d))

	l.Add(testRecords()[0])
	require.NoError(t, l.LoadFromFile())
	require.Equal(t, 0, l.Len())
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	saveTestLog(t, path, testRecords()...)
	saveTestLog(t, path, testRecord{ID: 3, Name: "Printer"})

	l := New[testRecord](path)
	require.NoError(t, l.LoadFromFile())
	require.Equal(t, []testRecord{{ID: 3, Name: "Printer"}}, l.GetAll())
}

func TestDuplicateIDsAllowed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	recs := []testRecord{{ID: 1, Name: "a"}, {ID: 1, Name: "b"}}
	saveTestLog(t, path, recs...)
	l := New[testRecord](path)
	require.NoError(t, l.LoadFromFile())
	require.Equal(t, recs, l.GetAll())
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	l := New[testRecord](path)
	require.NoError(t, l.LoadFromFile())
	require.Equal(t, 0, l.Len())

	l.AddAll(testRecords()...)
	require.NoError(t, l.LoadFromFile())
	require.Equal(t, testRecords(), l.GetAll())
	require.NoFileExists(t, path)
}

func TestLoadReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	saveTestLog(t, path, testRecords()[1])

	l := New[testRecord](path)
	l.AddAll(testRecords()...)
	l.Add(testRecord{ID: 9})
	require.NoError(t, l.LoadFromFile())
	require.Equal(t, testRecords()[1:], l.GetAll())
}

func TestLoadNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	require.NoError(t, os.WriteFile(path, []byte("null\n"), 0644))
	l := New[testRecord](path)
	l.AddAll(testRecords()...)
	require.NoError(t, l.LoadFromFile())
	require.Equal(t, 0, l.Len())
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	tests := []string{
		"",
		"   ",
		"[",
		`{"id":1}`,
		`[1,2]`,
		`[{"id":"one"}]`,
		`[{"id":1}] [{"id":2}]`,
		`[{"id":1}] x`,
		`[{"id":1,"date_added":"yesterday"}]`,
	}
	for i, s := range tests {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(s), 0644))
		l := New[testRecord](path)
		l.AddAll(testRecords()...)
		err := l.LoadFromFile()
		perr := requirePersistenceError(t, err, OpLoad)
		require.Equal(t, path, perr.Path)
		require.Equal(t, testRecords(), l.GetAll(), "test %d: %q", i, s)
	}
}

func TestLoadCorruptedCompressed(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range []string{".gz", ".zst", ".br"} {
		path := filepath.Join(dir, "inventory.json"+ext)
		saveTestLog(t, path, testRecords()...)
		d, err := os.ReadFile(path)
		require.NoError(t, err)
		// drop the tail
		require.NoError(t, os.WriteFile(path, d[:len(d)/2], 0644))

		l := New[testRecord](path)
		l.Add(testRecord{ID: 7})
		err = l.LoadFromFile()
		requirePersistenceError(t, err, OpLoad)
		require.Equal(t, []testRecord{{ID: 7}}, l.GetAll(), "ext: %s", ext)
	}
}

func TestDisallowUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":1,"color":"red"}]`), 0644))

	l := New[testRecord](path)
	require.NoError(t, l.LoadFromFile())
	require.Equal(t, []testRecord{{ID: 1}}, l.GetAll())

	l = New[testRecord](path)
	l.DisallowUnknownFields = true
	err := l.LoadFromFile()
	requirePersistenceError(t, err, OpLoad)
	require.Equal(t, 0, l.Len())
}

func TestSaveToMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "inventory.json")
	l := New[testRecord](path)
	l.AddAll(testRecords()...)
	err := l.SaveToFile()
	perr := requirePersistenceError(t, err, OpSave)
	require.Equal(t, path, perr.Path)
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.Equal(t, testRecords(), l.GetAll())
	require.NoFileExists(t, path)
}

func TestSaveToDirectoryPath(t *testing.T) {
	dir := t.TempDir()
	l := New[testRecord](dir)
	l.AddAll(testRecords()...)
	requirePersistenceError(t, l.SaveToFile(), OpSave)
	require.Equal(t, testRecords(), l.GetAll())
}

type unsupportedRecord struct {
	ID int
	C  chan int
}

func TestSaveFailureKeepsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0644))

	l := New[unsupportedRecord](path)
	l.Add(unsupportedRecord{ID: 1, C: make(chan int)})
	requirePersistenceError(t, l.SaveToFile(), OpSave)

	d, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]", string(d))
	requireNoTempFiles(t, dir, 1)
	require.Equal(t, 1, l.Len())
}

func TestFilePerm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	l := New[testRecord](path)
	l.FilePerm = 0600
	require.NoError(t, l.SaveToFile())
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), st.Mode().Perm())

	// saving without FilePerm keeps permission of the existing file
	l2 := New[testRecord](path)
	l2.AddAll(testRecords()...)
	require.NoError(t, l2.SaveToFile())
	st, err = os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), st.Mode().Perm())
}

func TestUseNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	orig := `[{"id":9007199254740993,"name":"big"}]`
	require.NoError(t, os.WriteFile(path, []byte(orig), 0644))

	l := New[map[string]any](path)
	l.UseNumber = true
	require.NoError(t, l.LoadFromFile())
	recs := l.GetAll()
	require.Len(t, recs, 1)
	require.Equal(t, json.Number("9007199254740993"), recs[0]["id"])

	require.NoError(t, l.SaveToFile())
	d, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, orig+"\n", string(d))
}

func TestGetAllIsCopy(t *testing.T) {
	l := New[testRecord]("unused.json")
	l.AddAll(testRecords()...)
	all := l.GetAll()
	all[0].Name = "changed"
	require.Equal(t, testRecords(), l.GetAll())

	found := l.Find(func(r testRecord) bool { return r.Quantity > 5 })
	require.Equal(t, testRecords()[1:], found)

	l.Clear()
	require.Equal(t, 0, l.Len())
	require.Equal(t, "unused.json", l.Path())
}

func TestWriteTOON(t *testing.T) {
	l := New[testRecord]("unused.json")
	l.AddAll(testRecords()...)
	var buf bytes.Buffer
	require.NoError(t, l.WriteTOON(&buf))
	s := buf.String()
	require.True(t, strings.Contains(s, "records"), "got: %s", s)
	require.True(t, strings.Contains(s, "Laptop"), "got: %s", s)
	require.True(t, strings.Contains(s, "Phone"), "got: %s", s)
	require.True(t, strings.HasSuffix(s, "\n"))

	buf.Reset()
	require.NoError(t, New[testRecord]("unused.json").WriteTOON(&buf))
	require.True(t, strings.Contains(buf.String(), "records"))
}

var nameGen = rapid.StringOf(rapid.RuneFrom([]rune{'"', '\\', '\n', '\t', '<', '€', 'ł', '😀'}, unicode.Latin))

func genRecord() *rapid.Generator[testRecord] {
	return rapid.Custom(func(t *rapid.T) testRecord {
		sec := rapid.Int64Range(0, 4_000_000_000).Draw(t, "sec")
		nsec := rapid.Int64Range(0, 999_999_999).Draw(t, "nsec")
		return testRecord{
			ID:        rapid.Int().Draw(t, "id"),
			Name:      nameGen.Draw(t, "name"),
			Quantity:  rapid.IntRange(0, 1_000_000).Draw(t, "qty"),
			DateAdded: time.Unix(sec, nsec).UTC(),
		}
	})
}

func TestPropRoundTrip(t *testing.T) {
	dir := t.TempDir()
	exts := []string{".json", ".json.gz", ".json.zst", ".json.br"}
	rapid.Check(t, func(t *rapid.T) {
		recs := rapid.SliceOfN(genRecord(), 1, 30).Draw(t, "recs")
		ext := rapid.SampledFrom(exts).Draw(t, "ext")
		path := filepath.Join(dir, "prop"+ext)

		l := New[testRecord](path)
		l.Pretty = rapid.Bool().Draw(t, "pretty")
		l.AddAll(recs...)
		if err := l.SaveToFile(); err != nil {
			t.Fatalf("SaveToFile() failed with '%s'", err)
		}
		l2 := New[testRecord](path)
		if err := l2.LoadFromFile(); err != nil {
			t.Fatalf("LoadFromFile() failed with '%s'", err)
		}
		got := l2.GetAll()
		if len(got) != len(recs) {
			t.Fatalf("expected %d records, got %d", len(recs), len(got))
		}
		for i, exp := range recs {
			g := got[i]
			if g.ID != exp.ID || g.Name != exp.Name || g.Quantity != exp.Quantity || !g.DateAdded.Equal(exp.DateAdded) {
				t.Fatalf("record %d: expected %+v, got %+v", i, exp, g)
			}
		}
	})
}

func TestPersistenceErrorMessage(t *testing.T) {
	err := &PersistenceError{Op: OpSave, Path: "inventory.json", Err: fs.ErrPermission}
	require.Equal(t, "entitylog: save of 'inventory.json' failed: permission denied", err.Error())
	require.True(t, errors.Is(err, fs.ErrPermission))
}
