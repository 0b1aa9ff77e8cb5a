package proto

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestPopSingleRecord(t *testing.T) {
	f := NewFramer()
	if err := f.Append([]byte("PING 1\r\n")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	rec, ok := f.Pop()
	if !ok {
		t.Fatal("expected a record")
	}
	if string(rec) != "PING 1" {
		t.Errorf("record: got %q, want %q", rec, "PING 1")
	}
	if _, ok := f.Pop(); ok {
		t.Error("expected no further records")
	}
}

func TestPopNotReady(t *testing.T) {
	f := NewFramer()
	f.Append([]byte("PING 1"))
	if _, ok := f.Pop(); ok {
		t.Error("expected not-ready without terminator")
	}
	f.Append([]byte("\r"))
	if _, ok := f.Pop(); ok {
		t.Error("expected not-ready with bare CR")
	}
	f.Append([]byte("\n"))
	rec, ok := f.Pop()
	if !ok || string(rec) != "PING 1" {
		t.Errorf("got %q ok=%v, want %q", rec, ok, "PING 1")
	}
}

func TestPopMultipleRecordsOneAppend(t *testing.T) {
	f := NewFramer()
	f.Append([]byte("A 1\r\nB 2\r\nC 3\r\n"))
	want := []string{"A 1", "B 2", "C 3"}
	for _, w := range want {
		rec, ok := f.Pop()
		if !ok || string(rec) != w {
			t.Fatalf("got %q ok=%v, want %q", rec, ok, w)
		}
	}
}

func TestPopEmptyRecord(t *testing.T) {
	f := NewFramer()
	f.Append([]byte("\r\n"))
	rec, ok := f.Pop()
	if !ok {
		t.Fatal("expected an empty record")
	}
	if len(rec) != 0 {
		t.Errorf("expected empty record, got %q", rec)
	}
}

func TestAppendByteAtATime(t *testing.T) {
	f := NewFramer()
	for _, b := range []byte("PING 7\r\n") {
		if err := f.Append([]byte{b}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	rec, ok := f.Pop()
	if !ok || string(rec) != "PING 7" {
		t.Errorf("got %q ok=%v, want %q", rec, ok, "PING 7")
	}
}

func TestAppendOversize(t *testing.T) {
	f := NewFramer()
	if err := f.Append(bytes.Repeat([]byte("x"), MaxRecord)); err != nil {
		t.Fatalf("at limit: %v", err)
	}
	err := f.Append([]byte("x"))
	if !errors.Is(err, ErrOversize) {
		t.Errorf("past limit: got %v, want ErrOversize", err)
	}
}

func TestReadRecordAcrossReads(t *testing.T) {
	f := NewFramer()
	r := iotest{chunks: [][]byte{[]byte("LOG"), []byte("IN 2 a=b"), []byte("\r\nX")}}
	rec, err := f.ReadRecord(&r)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if string(rec) != "LOGIN 2 a=b" {
		t.Errorf("got %q, want %q", rec, "LOGIN 2 a=b")
	}
	if f.Buffered() != 1 {
		t.Errorf("buffered: got %d, want 1", f.Buffered())
	}
}

func TestReadRecordEOF(t *testing.T) {
	f := NewFramer()
	r := iotest{chunks: [][]byte{[]byte("partial")}}
	if _, err := f.ReadRecord(&r); !errors.Is(err, io.EOF) {
		t.Errorf("got %v, want io.EOF", err)
	}
}

// iotest yields its chunks one per Read, then io.EOF.
type iotest struct {
	chunks [][]byte
}

func (r *iotest) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}
