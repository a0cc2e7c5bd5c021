package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventFireStopsAtFirstHandler(t *testing.T) {
	es := NewEventSystem()
	var calls []string

	first, second := "first", "second"
	assert.True(t, es.Register(EventCodeMeshUploaded, first, func(_ interface{}, l interface{}, ctx EventContext) bool {
		calls = append(calls, l.(string))
		return true
	}))
	assert.True(t, es.Register(EventCodeMeshUploaded, second, func(_ interface{}, l interface{}, ctx EventContext) bool {
		calls = append(calls, l.(string))
		return false
	}))

	handled := es.Fire(nil, NewEvent(MeshUploadedEvent{Guid: "a", VertexCount: 3}))
	assert.True(t, handled)
	assert.Equal(t, []string{"first"}, calls)
}

func TestEventRegisterRejectsDuplicateListener(t *testing.T) {
	es := NewEventSystem()
	l := &struct{}{}
	cb := func(interface{}, interface{}, EventContext) bool { return false }
	assert.True(t, es.Register(EventCodeAssetChanged, l, cb))
	assert.False(t, es.Register(EventCodeAssetChanged, l, cb))
	assert.True(t, es.Unregister(EventCodeAssetChanged, l))
	assert.False(t, es.Unregister(EventCodeAssetChanged, l))
}

func TestEventPayloadDecodedByCode(t *testing.T) {
	es := NewEventSystem()
	var got ResourceReleasedEvent
	es.Register(EventCodeResourceReleased, nil, func(_ interface{}, _ interface{}, ctx EventContext) bool {
		if ctx.Code != EventCodeResourceReleased {
			return false
		}
		got = ctx.Payload.(ResourceReleasedEvent)
		return true
	})
	assert.True(t, es.Fire(nil, NewEvent(ResourceReleasedEvent{Kind: "vertex", Index: 7})))
	assert.Equal(t, uint32(7), got.Index)
	assert.False(t, es.Fire(nil, NewEvent(ApplicationQuitEvent{})))
}
