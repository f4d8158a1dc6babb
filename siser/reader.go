package siser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Reader reads records written by Writer
type Reader struct {
	r *bufio.Reader

	// hints that the data was written without a timestamp
	// (see Writer.NoTimestamp)
	NoTimestamp bool

	// Data, Name and Timestamp are available after ReadNextData.
	// They are over-written in next ReadNextData.
	Data      []byte
	Name      string
	Timestamp time.Time

	// position of the current and next record, allows indexing
	// records by offset
	CurrRecordPos int64
	NextRecordPos int64

	err  error
	done bool
}

func NewReader(r *bufio.Reader) *Reader {
	return &Reader{r: r}
}

// Done returns true if we're finished reading
func (r *Reader) Done() bool {
	return r.err != nil || r.done
}

// Err returns the error that stopped reading. io.EOF is not an error.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) setHeaderErr(hdr []byte) bool {
	r.err = fmt.Errorf("siser: unexpected header '%s'", string(bytes.TrimSpace(hdr)))
	return false
}

// ReadNextData reads the next record. Returns false when there are no
// more records, check Err() to see if it was due to an error.
func (r *Reader) ReadNextData() bool {
	if r.Done() {
		return false
	}
	r.Name = ""
	r.Timestamp = time.Time{}
	r.CurrRecordPos = r.NextRecordPos

	hdr, err := r.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(hdr) == 0 {
			r.done = true
		} else if err == io.EOF {
			r.err = io.ErrUnexpectedEOF
		} else {
			r.err = err
		}
		return false
	}
	recSize := len(hdr)

	if !bytes.HasPrefix(hdr, hdrPrefix) {
		return r.setHeaderErr(hdr)
	}
	rest := hdr[len(hdrPrefix) : len(hdr)-1]
	parts := bytes.SplitN(rest, []byte{' '}, 3)

	size, err := strconv.ParseInt(string(parts[0]), 10, 64)
	if err != nil || size < 0 {
		return r.setHeaderErr(hdr)
	}
	parts = parts[1:]
	if !r.NoTimestamp {
		if len(parts) == 0 {
			// with timestamp, we need at least 2 values
			return r.setHeaderErr(hdr)
		}
		timeMs, err := strconv.ParseInt(string(parts[0]), 10, 64)
		if err != nil {
			return r.setHeaderErr(hdr)
		}
		r.Timestamp = TimeFromUnixMillisecond(timeMs)
		parts = parts[1:]
	}
	if len(parts) > 0 {
		r.Name = string(bytes.Join(parts, []byte{' '}))
	}

	// re-use r.Data unless it got big
	if cap(r.Data) > 1024*1024 || size > int64(cap(r.Data)) {
		r.Data = make([]byte, size)
	} else {
		r.Data = r.Data[:size]
	}
	n, err := io.ReadFull(r.r, r.Data)
	if err != nil {
		r.err = err
		return false
	}
	recSize += n

	// writer pads data that doesn't end with newline
	if n > 0 && r.Data[n-1] != '\n' {
		if _, err = r.r.Discard(1); err != nil {
			r.err = err
			return false
		}
		recSize++
	}
	r.NextRecordPos += int64(recSize)
	return true
}
