package dispatch

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Device message types on the update topic.
const (
	typeStatus     = 0
	typeSwitch     = 1
	typeBrightness = 2
	typeColor      = 3
	typeSensor     = 5
)

// Brightness bounds; out-of-range values are clamped, not rejected.
const (
	brightnessMin = 0
	brightnessMax = 100
)

// rgbHexDigits is the required length of an RGB colour value.
const rgbHexDigits = 6

// sensorScale converts tenths (wire format) to whole units.
const sensorScale = 10.0

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SensorRecorder receives validated sensor readings for telemetry storage.
// Implemented by the influxdb client; may be nil.
type SensorRecorder interface {
	WriteSensorReading(deviceID string, kind string, value float64)
}

// Dispatcher decodes device messages and routes them through the registry.
//
// Thread Safety: safe for concurrent use; paho invokes handlers from
// multiple goroutines.
type Dispatcher struct {
	registry *Registry
	logger   Logger
	recorder SensorRecorder
}

// NewDispatcher creates a dispatcher over the given registry.
// logger and recorder are optional.
func NewDispatcher(registry *Registry, logger Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger,
	}
}

// SetRecorder attaches a telemetry recorder for sensor readings.
func (d *Dispatcher) SetRecorder(recorder SensorRecorder) {
	d.recorder = recorder
}

// Registry returns the underlying callback registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// envelope mirrors the device payload. Fields that devices send with
// inconsistent JSON types (booleans as 0/1, numbers as strings) are
// decoded loosely and coerced during validation.
type envelope struct {
	DeviceName string `json:"deviceName"`
	Type       *int   `json:"type"`
	Online     any    `json:"online"`
	On         any    `json:"on"`
	Brightness any    `json:"brightness"`
	RGB        any    `json:"rgb"`
	Temp       any    `json:"temp"`
	Humi       any    `json:"humi"`
}

// HandleMessage decodes and dispatches one raw device message.
//
// Returns true if the message was dispatched, false if it was dropped
// (malformed JSON, missing fields, unknown type, invalid values).
// Dropped messages are reported through the logger and never retried.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) bool {
	var msg envelope
	if err := json.Unmarshal(payload, &msg); err != nil {
		d.warn("dropping undecodable message", "topic", topic, "error", err)
		return false
	}

	if msg.DeviceName == "" {
		d.debug("dropping message without deviceName", "topic", topic)
		return false
	}
	if msg.Type == nil {
		d.debug("dropping message without type", "topic", topic, "device", msg.DeviceName)
		return false
	}

	switch *msg.Type {
	case typeStatus:
		return d.handleStatus(topic, msg)
	case typeSwitch:
		return d.handleSwitch(topic, msg)
	case typeBrightness:
		return d.handleBrightness(topic, msg)
	case typeColor:
		return d.handleColor(topic, msg)
	case typeSensor:
		return d.handleSensor(topic, msg)
	default:
		d.debug("dropping message with unknown type", "topic", topic, "device", msg.DeviceName, "type", *msg.Type)
		return false
	}
}

func (d *Dispatcher) handleStatus(topic string, msg envelope) bool {
	online, ok := toBool(msg.Online)
	if !ok {
		d.debug("status message missing online field", "device", msg.DeviceName)
		return false
	}

	d.fire(Event{
		Device: msg.DeviceName,
		Attr:   AttrStatus,
		Topic:  topic,
		Online: online,
	})
	return true
}

func (d *Dispatcher) handleSwitch(topic string, msg envelope) bool {
	on, ok := toBool(msg.On)
	if !ok {
		d.debug("switch message missing on field", "device", msg.DeviceName)
		return false
	}

	d.fire(Event{
		Device: msg.DeviceName,
		Attr:   AttrSwitch,
		Topic:  topic,
		On:     on,
	})
	return true
}

func (d *Dispatcher) handleBrightness(topic string, msg envelope) bool {
	level, ok := toFloat(msg.Brightness)
	if !ok {
		d.debug("brightness message missing or non-numeric", "device", msg.DeviceName)
		return false
	}

	// Out-of-range values are clamped, never rejected.
	if level < brightnessMin {
		level = brightnessMin
	}
	if level > brightnessMax {
		level = brightnessMax
	}

	d.fire(Event{
		Device: msg.DeviceName,
		Attr:   AttrBrightness,
		Topic:  topic,
		Level:  level,
	})
	return true
}

func (d *Dispatcher) handleColor(topic string, msg envelope) bool {
	raw, ok := toString(msg.RGB)
	if !ok {
		d.debug("color message missing rgb field", "device", msg.DeviceName)
		return false
	}

	color, ok := NormalizeRGB(raw)
	if !ok {
		d.debug("dropping invalid rgb value", "device", msg.DeviceName, "rgb", raw)
		return false
	}

	d.fire(Event{
		Device: msg.DeviceName,
		Attr:   AttrColor,
		Topic:  topic,
		Color:  color,
	})
	return true
}

func (d *Dispatcher) handleSensor(topic string, msg envelope) bool {
	temp, hasTemp := toFloat(msg.Temp)
	humi, hasHumi := toFloat(msg.Humi)

	if !hasTemp && !hasHumi {
		d.debug("sensor message missing temp and humi fields", "device", msg.DeviceName)
		return false
	}

	// Wire values are tenths; each present field dispatches independently.
	if hasTemp {
		d.fireSensor(topic, msg.DeviceName, SensorTemperature, temp/sensorScale)
	}
	if hasHumi {
		d.fireSensor(topic, msg.DeviceName, SensorHumidity, humi/sensorScale)
	}
	return true
}

func (d *Dispatcher) fireSensor(topic, device string, kind SensorKind, value float64) {
	if d.recorder != nil {
		d.recorder.WriteSensorReading(device, string(kind), value)
	}

	d.fire(Event{
		Device: device,
		Attr:   AttrSensor,
		Topic:  topic,
		Sensor: kind,
		Value:  value,
	})
}

// fire invokes the device-specific callback and then the general one.
// Both may run for a single event.
func (d *Dispatcher) fire(event Event) {
	specific, general := d.registry.lookup(event.Device, event.Attr)
	if specific != nil {
		d.invoke(specific, event)
	}
	if general != nil {
		d.invoke(general, event)
	}
}

// invoke runs a callback with panic recovery so one registration cannot
// take down message processing.
func (d *Dispatcher) invoke(cb Callback, event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.error("callback panic recovered",
				"device", event.Device,
				"attribute", event.Attr.String(),
				"panic", r,
			)
		}
	}()
	cb(event)
}

// NormalizeRGB validates a colour value and normalizes it to "#RRGGBB".
//
// Accepts six hex digits with an optional "#" prefix, in either case.
// Returns false for any other length or non-hex content.
func NormalizeRGB(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "#")

	if len(s) != rgbHexDigits {
		return "", false
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return "", false
	}
	return "#" + s, true
}

// toBool coerces the loose boolean encodings devices use.
func toBool(v any) (value, ok bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	default:
		return false, false
	}
}

// toFloat coerces numbers and numeric strings.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toString coerces strings and integral numbers (devices occasionally
// send bare numeric colour values).
func toString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func (d *Dispatcher) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Dispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

func (d *Dispatcher) error(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Error(msg, args...)
	}
}
