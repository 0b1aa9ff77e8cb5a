package proto

import (
	"errors"
	"fmt"
	"strings"
)

// Record syntax: `VERB REQ_ID [k1=v1 [k2=v2 ...]]`. Verb and request id
// are non-empty whitespace-free tokens. A payload value is everything
// after the first '=' of its token, so base64 padding survives intact.
// There is no quoting; free text travels base64-encoded.

// ErrBadRecord is returned when a record has no verb or no request id.
var ErrBadRecord = errors.New("malformed record")

// Request is one parsed client record.
type Request struct {
	Verb  string
	ReqID string

	fields map[string]string
}

// ParseRequest splits a record into verb, request id, and payload
// fields. Runs of spaces between tokens are tolerated.
func ParseRequest(rec []byte) (*Request, error) {
	tokens := strings.Fields(string(rec))
	if len(tokens) < 2 {
		return nil, ErrBadRecord
	}
	req := &Request{Verb: tokens[0], ReqID: tokens[1]}
	if len(tokens) > 2 {
		req.fields = make(map[string]string, len(tokens)-2)
		for _, tok := range tokens[2:] {
			k, v, ok := strings.Cut(tok, "=")
			if !ok || k == "" {
				continue
			}
			req.fields[k] = v
		}
	}
	return req, nil
}

// Field returns the value for key and whether the key was present.
func (r *Request) Field(key string) (string, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// FormatOK renders a success response record (no terminator).
func FormatOK(reqID, payload string) string {
	if payload == "" {
		return "OK " + reqID
	}
	return "OK " + reqID + " " + payload
}

// FormatErr renders an error response record (no terminator).
func FormatErr(reqID string, code int, tag string) string {
	return fmt.Sprintf("ERR %s %d %s", reqID, code, tag)
}

// FormatPush renders a server-initiated record. Pushes carry no
// request id; kv is an ordered list of alternating keys and values.
func FormatPush(verb string, kv ...string) string {
	var b strings.Builder
	b.WriteString("PUSH ")
	b.WriteString(verb)
	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteByte(' ')
		b.WriteString(kv[i])
		b.WriteByte('=')
		b.WriteString(kv[i+1])
	}
	return b.String()
}
