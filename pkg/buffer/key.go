package buffer

import (
	"fmt"

	"github.com/petrijr/fluxbuf/pkg/api"
)

// BufferKeyTag is the identity of a key: which buffer it unlocks, for which
// session, and which node minted it. It carries no element type.
type BufferKeyTag struct {
	Buffer  api.Entity
	Session api.Entity

	// Accessor is only used to suppress closed-loop notifications. It never
	// grants or denies access.
	Accessor api.Entity

	ref *keyRef
}

// Lifecycle returns the lifecycle the tag holds a reference on, or nil for
// an untracked key.
func (t BufferKeyTag) Lifecycle() *AccessLifecycle {
	return t.ref.current()
}

// IsInUse reports whether the tag's lifecycle has outstanding references.
// Untracked keys are never in use.
func (t BufferKeyTag) IsInUse() bool {
	return t.Lifecycle().IsInUse()
}

// Clone returns a tag with the same identity holding a new reference on the
// same lifecycle.
func (t BufferKeyTag) Clone() BufferKeyTag {
	t.ref = t.ref.clone()
	return t
}

// DeepClone returns a tag with the same identity and a fresh, independent
// lifecycle.
func (t BufferKeyTag) DeepClone() BufferKeyTag {
	t.ref = t.ref.deepClone()
	return t
}

// Release gives the tag's reference back. Calling it again, on t or on any
// plain copy of t, has no effect.
func (t BufferKeyTag) Release() {
	t.ref.release()
}

func (t BufferKeyTag) String() string {
	return fmt.Sprintf("{buffer: %s, session: %s, accessor: %s, in_use: %t}",
		t.Buffer, t.Session, t.Accessor, t.IsInUse())
}

// BufferKey unlocks access to the values of a Buffer[T] within one session.
//
// Copying a key value with = does not take a new reference; use Clone for
// that. Every key obtained from CreateKey, Clone or DeepClone should be
// released once it is no longer needed.
type BufferKey[T any] struct {
	tag BufferKeyTag
}

// Tag returns the identity of k.
func (k BufferKey[T]) Tag() BufferKeyTag { return k.tag }

// Buffer returns the buffer entity the key unlocks.
func (k BufferKey[T]) Buffer() api.Entity { return k.tag.Buffer }

// Session returns the session the key is scoped to.
func (k BufferKey[T]) Session() api.Entity { return k.tag.Session }

// Accessor returns the node that minted the key.
func (k BufferKey[T]) Accessor() api.Entity { return k.tag.Accessor }

func (k BufferKey[T]) IsInUse() bool { return k.tag.IsInUse() }

func (k BufferKey[T]) Clone() BufferKey[T] { return BufferKey[T]{tag: k.tag.Clone()} }

func (k BufferKey[T]) DeepClone() BufferKey[T] { return BufferKey[T]{tag: k.tag.DeepClone()} }

func (k BufferKey[T]) Release() { k.tag.Release() }

// Any erases the element type. The returned key shares k's reference, so it
// must not be released separately.
func (k BufferKey[T]) Any() AnyBufferKey {
	return AnyBufferKey{tag: k.tag}
}

func (k BufferKey[T]) String() string {
	return fmt.Sprintf("BufferKey[%s]%s", typeName[T](), k.tag)
}

// AnyBufferKey is a key with its element type erased. It is enough to reach
// state that does not depend on the element type, such as the gate.
type AnyBufferKey struct {
	tag BufferKeyTag
}

func (k AnyBufferKey) Tag() BufferKeyTag       { return k.tag }
func (k AnyBufferKey) Buffer() api.Entity      { return k.tag.Buffer }
func (k AnyBufferKey) Session() api.Entity     { return k.tag.Session }
func (k AnyBufferKey) Accessor() api.Entity    { return k.tag.Accessor }
func (k AnyBufferKey) IsInUse() bool           { return k.tag.IsInUse() }
func (k AnyBufferKey) Clone() AnyBufferKey     { return AnyBufferKey{tag: k.tag.Clone()} }
func (k AnyBufferKey) DeepClone() AnyBufferKey { return AnyBufferKey{tag: k.tag.DeepClone()} }
func (k AnyBufferKey) Release()                { k.tag.Release() }
func (k AnyBufferKey) String() string          { return "AnyBufferKey" + k.tag.String() }

// KeyBuilder stamps keys for one accessor within one session.
type KeyBuilder struct {
	session   api.Entity
	accessor  api.Entity
	untracked bool
	sink      *releaseSink
}

// NewKeyBuilder returns a builder whose keys carry a live lifecycle but do
// not report their release anywhere. Use World.KeyBuilder to have releases
// show up in the world flush.
func NewKeyBuilder(session, accessor api.Entity) KeyBuilder {
	return KeyBuilder{session: session, accessor: accessor}
}

// Untracked returns a builder whose keys carry no lifecycle at all.
func (b KeyBuilder) Untracked() KeyBuilder {
	b.untracked = true
	return b
}

func (b KeyBuilder) Session() api.Entity  { return b.session }
func (b KeyBuilder) Accessor() api.Entity { return b.accessor }

func (b KeyBuilder) makeTag(buffer api.Entity) BufferKeyTag {
	tag := BufferKeyTag{
		Buffer:   buffer,
		Session:  b.session,
		Accessor: b.accessor,
	}
	if !b.untracked {
		tag.ref = newKeyRef(newLifecycle(tag, b.sink))
	}
	return tag
}

// CreateKey mints a key for buf.
func CreateKey[T any](buf Buffer[T], b KeyBuilder) BufferKey[T] {
	return BufferKey[T]{tag: b.makeTag(buf.ID())}
}

// CreateAnyKey mints a type-erased key for the buffer entity.
func CreateAnyKey(buffer api.Entity, b KeyBuilder) AnyBufferKey {
	return AnyBufferKey{tag: b.makeTag(buffer)}
}
