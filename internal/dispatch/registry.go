package dispatch

import "sync"

// Attribute identifies the class of device event a callback receives.
type Attribute int

// Attribute classes, one per message type the devices publish.
const (
	// AttrStatus is online/offline presence (message type 0).
	AttrStatus Attribute = iota

	// AttrSwitch is on/off state (message type 1).
	AttrSwitch

	// AttrBrightness is dimming level 0-100 (message type 2).
	AttrBrightness

	// AttrColor is an RGB colour "#RRGGBB" (message type 3).
	AttrColor

	// AttrSensor is a temperature or humidity reading (message type 5).
	AttrSensor
)

// String returns the attribute name for logging.
func (a Attribute) String() string {
	switch a {
	case AttrStatus:
		return "status"
	case AttrSwitch:
		return "switch"
	case AttrBrightness:
		return "brightness"
	case AttrColor:
		return "color"
	case AttrSensor:
		return "sensor"
	default:
		return "unknown"
	}
}

// SensorKind names the reading carried by an AttrSensor event.
type SensorKind string

// Sensor reading kinds from message type 5.
const (
	SensorTemperature SensorKind = "temperature"
	SensorHumidity    SensorKind = "humidity"
)

// GeneralDevice is the sentinel device name for callbacks that fire for
// every device.
const GeneralDevice = ""

// Key is the composite registry key: device name plus attribute class.
// Using a typed key instead of concatenated strings rules out collisions
// between device names and attribute suffixes.
type Key struct {
	Device string
	Attr   Attribute
}

// Event is the decoded, validated device event passed to callbacks.
// Only the fields relevant to Attr are populated.
type Event struct {
	Device string
	Attr   Attribute
	Topic  string

	// AttrStatus
	Online bool

	// AttrSwitch
	On bool

	// AttrBrightness, clamped to [0,100]
	Level float64

	// AttrColor, normalized "#RRGGBB"
	Color string

	// AttrSensor
	Sensor SensorKind
	Value  float64
}

// Callback receives a dispatched event. Callbacks run on the MQTT
// delivery goroutine and should not block.
type Callback func(Event)

// Registry holds callback registrations.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	callbacks map[Key]Callback
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		callbacks: make(map[Key]Callback),
	}
}

// Register adds a callback for a device and attribute, replacing any
// existing registration for the same key. Use GeneralDevice as the device
// name for a callback that fires for every device.
func (r *Registry) Register(device string, attr Attribute, cb Callback) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	r.callbacks[Key{Device: device, Attr: attr}] = cb
	r.mu.Unlock()
}

// Unregister removes a registration. Removing an absent key is a no-op.
func (r *Registry) Unregister(device string, attr Attribute) {
	r.mu.Lock()
	delete(r.callbacks, Key{Device: device, Attr: attr})
	r.mu.Unlock()
}

// Len returns the number of registered callbacks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// lookup returns the device-specific and general callbacks for an
// attribute. Either may be nil; both non-nil callbacks fire.
func (r *Registry) lookup(device string, attr Attribute) (specific, general Callback) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specific = r.callbacks[Key{Device: device, Attr: attr}]
	general = r.callbacks[Key{Device: GeneralDevice, Attr: attr}]
	return specific, general
}
