package metadata

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
)

/** @brief The semantic meaning of a vertex attribute. */
type VertexAttribute uint8

const (
	VertexAttributePosition VertexAttribute = iota
	VertexAttributeNormal
	VertexAttributeTangent
	VertexAttributeBitangent
	VertexAttributeColor0
	VertexAttributeColor1
	VertexAttributeColor2
	VertexAttributeColor3
	VertexAttributeTexCoord0
	VertexAttributeTexCoord1
	VertexAttributeTexCoord2
	VertexAttributeTexCoord3
	VertexAttributeTexCoord4
	VertexAttributeTexCoord5
	VertexAttributeTexCoord6
	VertexAttributeTexCoord7
	VertexAttributeBoneIndices
	VertexAttributeBoneWeight
	VertexAttributeCount
)

var vertexAttributeNames = [VertexAttributeCount]string{
	"Position", "Normal", "Tangent", "Bitangent",
	"Color0", "Color1", "Color2", "Color3",
	"TexCoord0", "TexCoord1", "TexCoord2", "TexCoord3",
	"TexCoord4", "TexCoord5", "TexCoord6", "TexCoord7",
	"BoneIndices", "BoneWeight",
}

func (a VertexAttribute) String() string {
	if a < VertexAttributeCount {
		return vertexAttributeNames[a]
	}
	return "Unknown"
}

/** @brief The storage type of a vertex attribute. */
type VertexAttributeType uint8

const (
	VertexAttributeTypeFloat VertexAttributeType = iota
	VertexAttributeTypeFloat2
	VertexAttributeTypeFloat3
	VertexAttributeTypeFloat4
	VertexAttributeTypeByte4
	VertexAttributeTypeByte4Norm
	VertexAttributeTypeUByte4
	VertexAttributeTypeUByte4Norm
	VertexAttributeTypeShort2
	VertexAttributeTypeShort2Norm
	VertexAttributeTypeUShort2Norm
	VertexAttributeTypeShort4
	VertexAttributeTypeShort4Norm
	VertexAttributeTypeUShort4Norm
	VertexAttributeTypeHalf2
	VertexAttributeTypeHalf4
	VertexAttributeTypeUInt
	VertexAttributeTypeUInt4
	VertexAttributeTypeInt4
)

// Size returns the byte size of the type, or an error for unknown types.
func (t VertexAttributeType) Size() (uint32, error) {
	switch t {
	case VertexAttributeTypeFloat, VertexAttributeTypeUInt:
		return 4, nil
	case VertexAttributeTypeFloat2:
		return 8, nil
	case VertexAttributeTypeFloat3:
		return 12, nil
	case VertexAttributeTypeFloat4, VertexAttributeTypeUInt4, VertexAttributeTypeInt4:
		return 16, nil
	case VertexAttributeTypeByte4, VertexAttributeTypeByte4Norm,
		VertexAttributeTypeUByte4, VertexAttributeTypeUByte4Norm,
		VertexAttributeTypeShort2, VertexAttributeTypeShort2Norm, VertexAttributeTypeUShort2Norm,
		VertexAttributeTypeHalf2:
		return 4, nil
	case VertexAttributeTypeShort4, VertexAttributeTypeShort4Norm, VertexAttributeTypeUShort4Norm,
		VertexAttributeTypeHalf4:
		return 8, nil
	}
	return 0, errors.Mark(errors.Newf("unknown vertex attribute type %d", t), core.ErrInvalidArgument)
}

// VertexElement is one attribute of a layout at its byte offset.
type VertexElement struct {
	Attribute VertexAttribute
	Type      VertexAttributeType
	Offset    uint32
	Size      uint32
}

/**
 * @brief An immutable description of an interleaved vertex. Instances are
 * shared between meshes through a VertexLayoutCache, so compare by pointer.
 */
type VertexLayout struct {
	Elements []VertexElement
	Stride   uint32
	// Bit i is set when VertexAttribute(i) is present.
	Components uint32
}

func (l *VertexLayout) Has(a VertexAttribute) bool {
	return l.Components&(1<<a) != 0
}

// Element returns the element for a, if present.
func (l *VertexLayout) Element(a VertexAttribute) (VertexElement, bool) {
	for _, e := range l.Elements {
		if e.Attribute == a {
			return e, true
		}
	}
	return VertexElement{}, false
}

/**
 * @brief Accumulates attributes at increasing offsets. Once Build has been
 * called the builder is frozen; further Add calls are ignored.
 */
type VertexLayoutBuilder struct {
	elements  []VertexElement
	offset    uint32
	completed bool
	layout    *VertexLayout
}

func NewVertexLayoutBuilder() *VertexLayoutBuilder {
	return &VertexLayoutBuilder{}
}

func (b *VertexLayoutBuilder) Add(attribute VertexAttribute, t VertexAttributeType) error {
	if b.completed {
		return nil
	}
	size, err := t.Size()
	if err != nil {
		return err
	}
	b.elements = append(b.elements, VertexElement{
		Attribute: attribute,
		Type:      t,
		Offset:    b.offset,
		Size:      size,
	})
	b.offset += size
	return nil
}

// Build freezes the builder. It returns nil when nothing was added and the same
// pointer on every subsequent call.
func (b *VertexLayoutBuilder) Build() *VertexLayout {
	if b.completed {
		return b.layout
	}
	b.completed = true
	if len(b.elements) == 0 {
		return nil
	}
	l := &VertexLayout{
		Elements: make([]VertexElement, len(b.elements)),
		Stride:   b.offset,
	}
	copy(l.Elements, b.elements)
	for _, e := range l.Elements {
		l.Components |= 1 << e.Attribute
	}
	b.layout = l
	return l
}

// CanonicalVertexType is the type each attribute is packed as in generated blobs.
func CanonicalVertexType(a VertexAttribute) VertexAttributeType {
	switch {
	case a <= VertexAttributeBitangent:
		return VertexAttributeTypeFloat3
	case a <= VertexAttributeColor3:
		return VertexAttributeTypeFloat4
	case a <= VertexAttributeTexCoord7:
		return VertexAttributeTypeFloat2
	default:
		return VertexAttributeTypeFloat4
	}
}

// ChannelMask has bit i set when VertexAttribute(i) carries data.
type ChannelMask uint32

func (m ChannelMask) Has(a VertexAttribute) bool {
	return m&(1<<a) != 0
}

func (m ChannelMask) With(a VertexAttribute) ChannelMask {
	return m | 1<<a
}

// Signature is the cache key: the attribute names present, in canonical order.
func (m ChannelMask) Signature() string {
	var sb strings.Builder
	for a := VertexAttribute(0); a < VertexAttributeCount; a++ {
		if m.Has(a) {
			if sb.Len() > 0 {
				sb.WriteByte('|')
			}
			sb.WriteString(a.String())
		}
	}
	return sb.String()
}

/**
 * @brief Shares one VertexLayout per channel signature. Owned by the renderer
 * and injected into meshes. Clear drops every cached layout.
 */
type VertexLayoutCache struct {
	mu      sync.Mutex
	layouts map[string]*VertexLayout
	newFn   func() *VertexLayoutBuilder
}

// NewVertexLayoutCache creates an empty cache. newBuilder may be nil, in which case
// NewVertexLayoutBuilder is used.
func NewVertexLayoutCache(newBuilder func() *VertexLayoutBuilder) *VertexLayoutCache {
	if newBuilder == nil {
		newBuilder = NewVertexLayoutBuilder
	}
	return &VertexLayoutCache{
		layouts: make(map[string]*VertexLayout),
		newFn:   newBuilder,
	}
}

var (
	defaultLayoutCache     *VertexLayoutCache
	defaultLayoutCacheOnce sync.Once
)

// DefaultVertexLayoutCache is the process-wide cache used when none is injected.
func DefaultVertexLayoutCache() *VertexLayoutCache {
	defaultLayoutCacheOnce.Do(func() {
		defaultLayoutCache = NewVertexLayoutCache(nil)
	})
	return defaultLayoutCache
}

/**
 * @brief Returns the cached layout for the channel set, building it on a miss.
 * Position is always the first element; the other channels follow in attribute order.
 */
func (c *VertexLayoutCache) LayoutFor(mask ChannelMask) (*VertexLayout, error) {
	mask = mask.With(VertexAttributePosition)
	key := mask.Signature()

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.layouts[key]; ok {
		return l, nil
	}

	b := c.newFn()
	for a := VertexAttribute(0); a < VertexAttributeCount; a++ {
		if !mask.Has(a) {
			continue
		}
		if err := b.Add(a, CanonicalVertexType(a)); err != nil {
			return nil, errors.Wrapf(err, "building vertex layout %s", key)
		}
	}
	l := b.Build()
	if l == nil {
		return nil, errors.Mark(errors.Newf("empty vertex layout for %q", key), core.ErrInvalidOperation)
	}
	c.layouts[key] = l
	core.LogDebug("vertex layout %s created, stride %d", key, l.Stride)
	return l, nil
}

func (c *VertexLayoutCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.layouts)
}

func (c *VertexLayoutCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layouts = make(map[string]*VertexLayout)
}
