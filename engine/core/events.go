package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode uint16

const (
	// Shuts the application down on the next frame.
	EventCodeApplicationQuit SystemEventCode = 0x01

	// A GPU resource slot was released by a backend.
	/* Payload: ResourceReleasedEvent */
	EventCodeResourceReleased SystemEventCode = 0x02

	// A mesh finished uploading its vertex and index data.
	/* Payload: MeshUploadedEvent */
	EventCodeMeshUploaded SystemEventCode = 0x03

	// A watched asset was created, written or removed on disk.
	/* Payload: AssetChangedEvent */
	EventCodeAssetChanged SystemEventCode = 0x04

	MaxEventCode SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MaxMessageCodes = 16384

// EventPayload is implemented by every event payload. The code tells a
// listener which concrete payload type to expect.
type EventPayload interface {
	EventCode() SystemEventCode
}

type ApplicationQuitEvent struct{}

type ResourceReleasedEvent struct {
	Kind  string
	Index uint32
}

type MeshUploadedEvent struct {
	Guid        string
	VertexCount int
	IndexCount  int
	Bytes       int
}

type AssetChangedOp uint8

const (
	AssetCreated AssetChangedOp = iota
	AssetWritten
	AssetRemoved
)

type AssetChangedEvent struct {
	Path string
	Op   AssetChangedOp
}

func (ApplicationQuitEvent) EventCode() SystemEventCode  { return EventCodeApplicationQuit }
func (ResourceReleasedEvent) EventCode() SystemEventCode { return EventCodeResourceReleased }
func (MeshUploadedEvent) EventCode() SystemEventCode     { return EventCodeMeshUploaded }
func (AssetChangedEvent) EventCode() SystemEventCode     { return EventCodeAssetChanged }

// EventContext is what listeners receive. Code always equals Payload.EventCode()
// when the event was built with NewEvent.
type EventContext struct {
	Code    SystemEventCode
	Payload EventPayload
}

func NewEvent(payload EventPayload) EventContext {
	return EventContext{Code: payload.EventCode(), Payload: payload}
}

// Should return true if handled.
type FnOnEvent func(sender interface{}, listener interface{}, ctx EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventSystem dispatches events to listeners registered per code.
type EventSystem struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
}

func NewEventSystem() *EventSystem {
	return &EventSystem{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
}

/**
 * Register to listen for when events are sent with the provided code. A listener can only
 * be registered once per code; duplicates return false.
 */
func (es *EventSystem) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if code >= MaxMessageCodes || onEvent == nil {
		return false
	}
	es.mu.Lock()
	defer es.mu.Unlock()
	for _, e := range es.registered[code] {
		if listener != nil && e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	es.registered[code] = append(es.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// Unregister removes the registration of listener for code.
func (es *EventSystem) Unregister(code SystemEventCode, listener interface{}) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	events := es.registered[code]
	for i, e := range events {
		if e.listener == listener {
			es.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the event's code. If a handler returns true, the event
 * is considered handled and is not passed on to any more listeners.
 */
func (es *EventSystem) Fire(sender interface{}, ctx EventContext) bool {
	es.mu.RLock()
	events := make([]*registeredEvent, len(es.registered[ctx.Code]))
	copy(events, es.registered[ctx.Code])
	es.mu.RUnlock()

	for _, e := range events {
		if e.callback(sender, e.listener, ctx) {
			return true
		}
	}
	return false
}

// Shutdown drops every registration.
func (es *EventSystem) Shutdown() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.registered = make(map[SystemEventCode][]*registeredEvent)
	return nil
}
