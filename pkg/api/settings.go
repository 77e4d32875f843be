package api

import "fmt"

// RetentionKind identifies one of the closed set of retention policies.
type RetentionKind int

const (
	RetentionKeepLast RetentionKind = iota
	RetentionKeepFirst
	RetentionKeepAll
)

func (k RetentionKind) String() string {
	switch k {
	case RetentionKeepLast:
		return "keep_last"
	case RetentionKeepFirst:
		return "keep_first"
	case RetentionKeepAll:
		return "keep_all"
	default:
		return fmt.Sprintf("retention(%d)", int(k))
	}
}

// RetentionPolicy describes how data within a buffer gets retained. Most
// consumers pull the oldest item, so the policy decides what happens when
// items are stored faster than they are pulled.
//
// The zero RetentionPolicy is KeepLast(1).
type RetentionPolicy struct {
	kind     RetentionKind
	n        int
	explicit bool
}

// KeepLast keeps the n newest values. Once the limit is reached the oldest
// value is removed whenever a new one arrives.
func KeepLast(n int) RetentionPolicy {
	return RetentionPolicy{kind: RetentionKeepLast, n: max(n, 0), explicit: true}
}

// KeepFirst keeps the first n values. Once the limit is reached any new
// value is discarded.
func KeepFirst(n int) RetentionPolicy {
	return RetentionPolicy{kind: RetentionKeepFirst, n: max(n, 0), explicit: true}
}

// KeepAll does not limit how many values can be stored.
func KeepAll() RetentionPolicy {
	return RetentionPolicy{kind: RetentionKeepAll, explicit: true}
}

// Kind returns which policy this is.
func (p RetentionPolicy) Kind() RetentionKind {
	return p.kind
}

// Limit returns the capacity and true for KeepLast/KeepFirst, or 0 and false
// for KeepAll.
func (p RetentionPolicy) Limit() (int, bool) {
	if !p.explicit {
		return 1, true
	}
	if p.kind == RetentionKeepAll {
		return 0, false
	}
	return p.n, true
}

func (p RetentionPolicy) String() string {
	n, bounded := p.Limit()
	if !bounded {
		return p.kind.String()
	}
	return fmt.Sprintf("%s(%d)", p.kind, n)
}

// Equal reports whether two policies behave identically.
func (p RetentionPolicy) Equal(o RetentionPolicy) bool {
	pn, pb := p.Limit()
	on, ob := o.Limit()
	return p.kind == o.kind && pn == on && pb == ob
}

// BufferSettings describes the behavior of a buffer. It is attached when the
// buffer is created.
type BufferSettings struct {
	retention RetentionPolicy
}

// NewBufferSettings returns settings with the given retention policy.
func NewBufferSettings(retention RetentionPolicy) BufferSettings {
	return BufferSettings{retention: retention}
}

// KeepLastSettings is shorthand for NewBufferSettings(KeepLast(n)).
func KeepLastSettings(n int) BufferSettings { return NewBufferSettings(KeepLast(n)) }

// KeepFirstSettings is shorthand for NewBufferSettings(KeepFirst(n)).
func KeepFirstSettings(n int) BufferSettings { return NewBufferSettings(KeepFirst(n)) }

// KeepAllSettings is shorthand for NewBufferSettings(KeepAll()).
func KeepAllSettings() BufferSettings { return NewBufferSettings(KeepAll()) }

// Retention returns the retention policy.
func (s BufferSettings) Retention() RetentionPolicy {
	return s.retention
}

// WithRetention returns a copy of s using the given policy.
func (s BufferSettings) WithRetention(p RetentionPolicy) BufferSettings {
	s.retention = p
	return s
}

// BufferLocation is the identifying information of a buffer. It says nothing
// about the type of values the buffer holds.
type BufferLocation struct {
	// Scope is the workflow the buffer belongs to.
	Scope Entity
	// Source is the buffer entity itself.
	Source Entity
}
