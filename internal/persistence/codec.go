package persistence

import (
	"bytes"
	"encoding/gob"
	"errors"
	"time"

	"github.com/petrijr/fluxbuf/pkg/api"
)

// errEmptyPayload is returned when decoding a zero-length payload.
var errEmptyPayload = errors.New("persistence: empty event payload")

// eventPayload is the gob wire form of an api.BufferEvent. Time is carried
// as Unix nanoseconds so payloads do not depend on the local zone.
type eventPayload struct {
	ID       string
	Run      string
	AtNanos  int64
	Type     string
	Buffer   api.Entity
	Session  api.Entity
	Accessor api.Entity
	Detail   string
}

// EncodeEvent gob-encodes ev.
func EncodeEvent(ev api.BufferEvent) ([]byte, error) {
	p := eventPayload{
		ID:       ev.ID,
		Run:      ev.Run,
		Type:     string(ev.Type),
		Buffer:   ev.Buffer,
		Session:  ev.Session,
		Accessor: ev.Accessor,
		Detail:   ev.Detail,
	}
	if !ev.At.IsZero() {
		p.AtNanos = ev.At.UnixNano()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeEvent reverses EncodeEvent.
func DecodeEvent(data []byte) (api.BufferEvent, error) {
	if len(data) == 0 {
		return api.BufferEvent{}, errEmptyPayload
	}
	var p eventPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return api.BufferEvent{}, err
	}

	ev := api.BufferEvent{
		ID:       p.ID,
		Run:      p.Run,
		Type:     api.EventType(p.Type),
		Buffer:   p.Buffer,
		Session:  p.Session,
		Accessor: p.Accessor,
		Detail:   p.Detail,
	}
	if p.AtNanos != 0 {
		ev.At = time.Unix(0, p.AtNanos)
	}
	return ev, nil
}
