package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidEntity is returned by ParseEntity for malformed input.
var ErrInvalidEntity = errors.New("invalid entity")

// Entity is a generation-checked handle into a World arena.
type Entity struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether e is the zero Entity, which is never allocated.
func (e Entity) IsZero() bool {
	return e.Generation == 0
}

// String formats e as "<index>v<generation>".
func (e Entity) String() string {
	if e.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%dv%d", e.Index, e.Generation)
}

// ParseEntity parses the output of Entity.String.
func ParseEntity(s string) (Entity, error) {
	if s == "none" {
		return Entity{}, nil
	}
	idx, gen, ok := strings.Cut(s, "v")
	if !ok {
		return Entity{}, fmt.Errorf("%w: %q", ErrInvalidEntity, s)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return Entity{}, fmt.Errorf("%w: %q", ErrInvalidEntity, s)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil || g == 0 {
		return Entity{}, fmt.Errorf("%w: %q", ErrInvalidEntity, s)
	}
	return Entity{Index: uint32(i), Generation: uint32(g)}, nil
}
