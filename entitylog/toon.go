package entitylog

import (
	"encoding/json"
	"io"

	"github.com/toon-format/toon-go"
)

// WriteTOON writes entities in memory to w in TOON format, which is
// more compact and readable than JSON. We go through JSON so that
// field names are the same as in the file.
// It's for humans only, LoadFromFile() can't read it.
func (l *Log[T]) WriteTOON(w io.Writer) error {
	d, err := l.marshal()
	if err != nil {
		return err
	}
	var records []any
	if err = json.Unmarshal(d, &records); err != nil {
		return err
	}
	if records == nil {
		records = []any{}
	}
	d, err = toon.Marshal(map[string]any{"records": records})
	if err != nil {
		return err
	}
	if len(d) > 0 && d[len(d)-1] != '\n' {
		d = append(d, '\n')
	}
	_, err = w.Write(d)
	return err
}
