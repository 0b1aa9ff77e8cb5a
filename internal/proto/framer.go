// Package proto implements the wire protocol: CR LF framed records
// carrying a verb, a request id, and a flat key=value payload.
package proto

import (
	"bytes"
	"errors"
	"io"
)

// MaxRecord is the largest number of buffered bytes the framer accepts
// without finding a record terminator.
const MaxRecord = 64 * 1024

// ErrOversize is returned when a peer sends MaxRecord bytes without a
// CR LF terminator.
var ErrOversize = errors.New("record exceeds maximum length without terminator")

var crlf = []byte("\r\n")

// Framer reassembles a TCP byte stream into CR LF terminated records.
// It keeps partial data between calls so records may arrive split
// across any number of reads, or several per read.
type Framer struct {
	buf []byte
}

// NewFramer returns a framer with an empty buffer.
func NewFramer() *Framer {
	return &Framer{buf: make([]byte, 0, 1024)}
}

// Append adds raw bytes from the stream to the internal buffer. It
// returns ErrOversize if the buffer grows past MaxRecord without
// containing a terminator; the connection should be torn down in that
// case since record boundaries are lost.
func (f *Framer) Append(p []byte) error {
	f.buf = append(f.buf, p...)
	if len(f.buf) > MaxRecord && !bytes.Contains(f.buf, crlf) {
		return ErrOversize
	}
	return nil
}

// Pop removes and returns the next complete record, without its CR LF
// terminator. The second return is false when no full record is
// buffered yet. A record may legally be empty.
func (f *Framer) Pop() ([]byte, bool) {
	i := bytes.Index(f.buf, crlf)
	if i < 0 {
		return nil, false
	}
	rec := make([]byte, i)
	copy(rec, f.buf[:i])
	f.buf = f.buf[:copy(f.buf, f.buf[i+2:])]
	return rec, true
}

// Buffered reports how many bytes are currently held without a
// complete record.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// ReadRecord alternates Pop and reads from r until a full record is
// available. It returns io.EOF on orderly peer close, ErrOversize on
// the MaxRecord condition, and the underlying error on I/O failure.
func (f *Framer) ReadRecord(r io.Reader) ([]byte, error) {
	var tmp [4096]byte
	for {
		if rec, ok := f.Pop(); ok {
			return rec, nil
		}
		n, err := r.Read(tmp[:])
		if n > 0 {
			if aerr := f.Append(tmp[:n]); aerr != nil {
				return nil, aerr
			}
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}
