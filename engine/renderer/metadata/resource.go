package metadata

/** @brief Bit flags describing how a GPU resource is used. */
type ResourceFlags uint32

const (
	ResourceFlagNone ResourceFlags = 0
	/** @brief Contents are rewritten often; updates happen in place. */
	ResourceFlagDynamic ResourceFlags = 1 << 0
	/** @brief The resource may be copied back to the CPU. */
	ResourceFlagReadable ResourceFlags = 1 << 1
	/** @brief Holds per-instance data rather than per-vertex data. */
	ResourceFlagInstance ResourceFlags = 1 << 2
	/** @brief Index data is 32-bit rather than 16-bit. */
	ResourceFlagIndex32 ResourceFlags = 1 << 3
	/** @brief The texture can be rendered to. */
	ResourceFlagRenderTarget ResourceFlags = 1 << 4
)

func (f ResourceFlags) Has(flag ResourceFlags) bool {
	return f&flag == flag
}

/**
 * @brief An index into a backend resource table. The zero value is invalid.
 */
type ResourceHandle struct {
	Index uint32
	Valid bool
}

// InvalidHandle is returned when a resource could not be reserved or created.
var InvalidHandle = ResourceHandle{}

/**
 * @brief One slot of a resource table. Native is the backend's own
 * representation of the resource.
 */
type ResourceSlot[T any] struct {
	Used   bool
	Native T
	Flags  ResourceFlags
	// Length of the resource in bytes.
	Length uint64
}

/**
 * @brief A fixed-capacity table of backend resources. Capacity is a hard
 * limit: Reserve fails once every slot is used. Tables are not safe for
 * concurrent use and belong to the thread submitting commands.
 */
type ResourceTable[T any] struct {
	slots []ResourceSlot[T]
	used  uint32
}

func NewResourceTable[T any](capacity uint32) *ResourceTable[T] {
	return &ResourceTable[T]{slots: make([]ResourceSlot[T], capacity)}
}

// Reserve claims the first free slot. It returns InvalidHandle when the table is full.
func (t *ResourceTable[T]) Reserve(flags ResourceFlags) ResourceHandle {
	for i := range t.slots {
		if t.slots[i].Used {
			continue
		}
		var zero T
		t.slots[i] = ResourceSlot[T]{Used: true, Native: zero, Flags: flags}
		t.used++
		return ResourceHandle{Index: uint32(i), Valid: true}
	}
	return InvalidHandle
}

// TryGet returns the slot if the handle is valid and the slot is in use.
func (t *ResourceTable[T]) TryGet(h ResourceHandle) (*ResourceSlot[T], bool) {
	if !h.Valid || h.Index >= uint32(len(t.slots)) {
		return nil, false
	}
	s := &t.slots[h.Index]
	if !s.Used {
		return nil, false
	}
	return s, true
}

// Release frees the slot and returns what it held. Releasing an unused slot is a no-op.
func (t *ResourceTable[T]) Release(h ResourceHandle) (ResourceSlot[T], bool) {
	s, ok := t.TryGet(h)
	if !ok {
		return ResourceSlot[T]{}, false
	}
	old := *s
	*s = ResourceSlot[T]{}
	t.used--
	return old, true
}

// Each visits every used slot in index order.
func (t *ResourceTable[T]) Each(fn func(h ResourceHandle, s *ResourceSlot[T])) {
	for i := range t.slots {
		if t.slots[i].Used {
			fn(ResourceHandle{Index: uint32(i), Valid: true}, &t.slots[i])
		}
	}
}

func (t *ResourceTable[T]) Capacity() uint32 {
	return uint32(len(t.slots))
}

func (t *ResourceTable[T]) Used() uint32 {
	return t.used
}
