package api

import "errors"

// ErrBufferMissing is returned when a key no longer identifies live buffer
// storage: the buffer entity was despawned, or it does not hold the storage
// the key expects.
var ErrBufferMissing = errors.New("the key was unable to identify a buffer")

// Gate is the flow-control flag of a buffer within a session. Forwarding
// combinators outside this module decide what a closed gate means; the core
// only stores and transitions it.
type Gate int

const (
	// GateOpen is the default state.
	GateOpen Gate = iota
	GateClosed
)

func (g Gate) String() string {
	if g == GateClosed {
		return "closed"
	}
	return "open"
}
