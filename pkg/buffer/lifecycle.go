package buffer

import (
	"sync/atomic"

	"github.com/petrijr/fluxbuf/pkg/api"
)

// AccessLifecycle is the reference count shared by a key and its plain
// clones. The key is in use while at least one reference is outstanding.
type AccessLifecycle struct {
	refs atomic.Int64

	buffer   api.Entity
	session  api.Entity
	accessor api.Entity
	sink     *releaseSink
}

func newLifecycle(tag BufferKeyTag, sink *releaseSink) *AccessLifecycle {
	l := &AccessLifecycle{
		buffer:   tag.Buffer,
		session:  tag.Session,
		accessor: tag.Accessor,
		sink:     sink,
	}
	l.refs.Store(1)
	return l
}

// IsInUse reports whether any reference is outstanding.
func (l *AccessLifecycle) IsInUse() bool {
	return l != nil && l.refs.Load() > 0
}

// Refs returns the number of outstanding references.
func (l *AccessLifecycle) Refs() int64 {
	if l == nil {
		return 0
	}
	return l.refs.Load()
}

func (l *AccessLifecycle) acquire() {
	l.refs.Add(1)
}

func (l *AccessLifecycle) release() {
	if l.refs.Add(-1) != 0 || l.sink == nil {
		return
	}
	l.sink.report(Effect{
		Kind:     EffectKeyReleased,
		Buffer:   l.buffer,
		Session:  l.session,
		Accessor: l.accessor,
	})
}

// detach mints an independent lifecycle with one reference that reports to
// the same sink.
func (l *AccessLifecycle) detach() *AccessLifecycle {
	d := &AccessLifecycle{
		buffer:   l.buffer,
		session:  l.session,
		accessor: l.accessor,
		sink:     l.sink,
	}
	d.refs.Store(1)
	return d
}

// keyRef is one reference on a lifecycle. Copies of a key value share their
// keyRef, so releasing any copy gives the reference back exactly once.
type keyRef struct {
	lifecycle *AccessLifecycle
	released  atomic.Bool
}

func newKeyRef(l *AccessLifecycle) *keyRef {
	if l == nil {
		return nil
	}
	return &keyRef{lifecycle: l}
}

// clone takes a new reference on the same lifecycle. Cloning a released
// reference yields another released reference.
func (r *keyRef) clone() *keyRef {
	if r == nil {
		return nil
	}
	c := &keyRef{lifecycle: r.lifecycle}
	if r.released.Load() {
		c.released.Store(true)
		return c
	}
	r.lifecycle.acquire()
	return c
}

func (r *keyRef) deepClone() *keyRef {
	if r == nil {
		return nil
	}
	return newKeyRef(r.lifecycle.detach())
}

func (r *keyRef) release() {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	r.lifecycle.release()
}

func (r *keyRef) current() *AccessLifecycle {
	if r == nil {
		return nil
	}
	return r.lifecycle
}
