package siser

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kjk/entitystore/require"
)

func TestMarshalLine(t *testing.T) {
	tm := TimeFromUnixMillisecond(1700000000123)
	tests := []struct {
		name string
		t    time.Time
		d    string
		exp  string
	}{
		{"", time.Time{}, "", "--- 0\n"},
		{"save", time.Time{}, "count: 2", "--- 8 save\ncount: 2\n"},
		{"save", tm, "count: 2\n", "--- 9 1700000000123 save\ncount: 2\n"},
		{"", tm, "x", "--- 1 1700000000123\nx\n"},
	}
	for _, test := range tests {
		got := MarshalLine(test.name, test.t, []byte(test.d), nil)
		require.Equal(t, test.exp, string(got))
	}
}

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	tm := time.Date(2025, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	records := []struct {
		name string
		data string
	}{
		{"entitylog.save", "path: items.json\ncount: 2"},
		{"entitylog.load", "path: items.json\ncount: 2\n"},
		{"", ""},
		{"multi word name", "d"},
	}
	for _, rec := range records {
		_, err := w.Write([]byte(rec.data), tm, rec.name)
		require.NoError(t, err)
	}

	r := NewReader(bufio.NewReader(bytes.NewReader(buf.Bytes())))
	i := 0
	for r.ReadNextData() {
		rec := records[i]
		require.Equal(t, rec.name, r.Name)
		require.Equal(t, rec.data, string(r.Data))
		require.True(t, tm.Equal(r.Timestamp), "timestamp %s != %s", r.Timestamp, tm)
		i++
	}
	require.NoError(t, r.Err())
	require.Equal(t, len(records), i)
	require.Equal(t, int64(buf.Len()), r.NextRecordPos)
}

func TestNoTimestamp(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.NoTimestamp = true
	_, err := w.Write([]byte("foo"), time.Now(), "name")
	require.NoError(t, err)
	require.Equal(t, "--- 3 name\nfoo\n", buf.String())

	r := NewReader(bufio.NewReader(&buf))
	r.NoTimestamp = true
	require.True(t, r.ReadNextData())
	require.Equal(t, "name", r.Name)
	require.Equal(t, "foo", string(r.Data))
	require.True(t, r.Timestamp.IsZero())
	require.False(t, r.ReadNextData())
	require.NoError(t, r.Err())
}

func TestReadInvalid(t *testing.T) {
	tests := []string{
		"foo\n",
		"--- x 123\n",
		"--- 3\nfoo\n",          // missing timestamp
		"--- 10 123 name\nfoo\n", // truncated data
		"--- 3 123",              // header without newline
	}
	for _, s := range tests {
		r := NewReader(bufio.NewReader(strings.NewReader(s)))
		for r.ReadNextData() {
		}
		require.Error(t, r.Err(), "input: %q", s)
	}
}
