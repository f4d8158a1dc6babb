// Package backuptest provides an in-memory S3-compatible server for
// testing code that uses package backup.
//
// It implements the subset of the S3 API that backup uses: bucket
// HEAD and location, object HEAD, GET, PUT and DELETE. Requests are not
// authenticated. Uploads signed with streaming (aws-chunked) payloads
// are decoded.
package backuptest

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

type object struct {
	data    []byte
	modTime time.Time
}

type Server struct {
	*httptest.Server
	Bucket string

	mu      sync.Mutex
	objects map[string]object
}

// NewServer starts a server with a single, empty bucket.
// Caller must call Close.
func NewServer(bucket string) *Server {
	s := &Server{
		Bucket:  bucket,
		objects: map[string]object{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Endpoint returns host:port of the server, without the scheme
func (s *Server) Endpoint() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// Object returns content of the object with key
func (s *Server) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	return o.data, ok
}

// SetObject creates or replaces the object with key
func (s *Server) SetObject(key string, d []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: append([]byte{}, d...), modTime: time.Now().UTC()}
}

func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []string
	for k := range s.objects {
		res = append(res, k)
	}
	return res
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, key string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<Error><Code>%s</Code><Message>%s</Message><Key>%s</Key><Resource>%s</Resource><RequestId>1</RequestId></Error>`,
		code, code, key, r.URL.Path)
}

func etag(d []byte) string {
	sum := md5.Sum(d)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// decodeChunked decodes aws-chunked body: "<hex size>[;ext]\r\n<data>\r\n"
// repeated, ending with a chunk of size 0 optionally followed by trailers
func decodeChunked(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	var res []byte
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeStr, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		n, err := strconv.ParseInt(sizeStr, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chunk size '%s'", sizeStr)
		}
		if n == 0 {
			return res, nil
		}
		buf := make([]byte, n)
		if _, err = io.ReadFull(br, buf); err != nil {
			return nil, err
		}
		res = append(res, buf...)
		if _, err = br.Discard(2); err != nil {
			return nil, err
		}
	}
}

func readBody(r *http.Request) ([]byte, error) {
	isChunked := strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") ||
		strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked")
	if isChunked {
		return decodeChunked(r.Body)
	}
	return io.ReadAll(r.Body)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != s.Bucket {
		writeError(w, r, http.StatusNotFound, "NoSuchBucket", key)
		return
	}
	if key == "" {
		if _, ok := r.URL.Query()["location"]; ok {
			w.Header().Set("Content-Type", "application/xml")
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
			return
		}
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeError(w, r, http.StatusNotImplemented, "NotImplemented", key)
		return
	}

	switch r.Method {
	case http.MethodPut:
		d, err := readBody(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "IncompleteBody", key)
			return
		}
		s.SetObject(key, d)
		w.Header().Set("ETag", etag(d))
		w.WriteHeader(http.StatusOK)

	case http.MethodGet, http.MethodHead:
		s.mu.Lock()
		o, ok := s.objects[key]
		s.mu.Unlock()
		if !ok {
			writeError(w, r, http.StatusNotFound, "NoSuchKey", key)
			return
		}
		h := w.Header()
		h.Set("Content-Type", "application/octet-stream")
		h.Set("Content-Length", strconv.Itoa(len(o.data)))
		h.Set("ETag", etag(o.data))
		h.Set("Last-Modified", o.modTime.Format(http.TimeFormat))
		h.Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			io.Copy(w, bytes.NewReader(o.data))
		}

	case http.MethodDelete:
		s.mu.Lock()
		delete(s.objects, key)
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, r, http.StatusMethodNotAllowed, "MethodNotAllowed", key)
	}
}
