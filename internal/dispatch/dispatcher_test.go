package dispatch

import (
	"testing"
)

func newTestDispatcher() (*Dispatcher, *Registry) {
	reg := NewRegistry()
	return NewDispatcher(reg, nil), reg
}

func TestHandleMessage_DropCases(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{not json`},
		{"not an object", `[1,2,3]`},
		{"missing deviceName", `{"type":1,"on":true}`},
		{"missing type", `{"deviceName":"lamp"}`},
		{"unknown type", `{"deviceName":"lamp","type":9,"on":true}`},
		{"status without online", `{"deviceName":"lamp","type":0}`},
		{"switch without on", `{"deviceName":"lamp","type":1}`},
		{"brightness missing", `{"deviceName":"lamp","type":2}`},
		{"brightness non-numeric", `{"deviceName":"lamp","type":2,"brightness":"bright"}`},
		{"color missing", `{"deviceName":"lamp","type":3}`},
		{"color wrong length", `{"deviceName":"lamp","type":3,"rgb":"12"}`},
		{"color non-hex", `{"deviceName":"lamp","type":3,"rgb":"GGHHII"}`},
		{"sensor without fields", `{"deviceName":"th1","type":5}`},
	}

	d, reg := newTestDispatcher()
	fired := 0
	for _, attr := range []Attribute{AttrStatus, AttrSwitch, AttrBrightness, AttrColor, AttrSensor} {
		reg.Register(GeneralDevice, attr, func(Event) { fired++ })
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d.HandleMessage("d/client/c", []byte(tt.payload)) {
				t.Errorf("HandleMessage(%q) = true, want dropped", tt.payload)
			}
		})
	}

	if fired != 0 {
		t.Errorf("callbacks fired %d times for dropped messages", fired)
	}
}

func TestHandleMessage_Status(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantOnline bool
	}{
		{"boolean true", `{"deviceName":"lamp","type":0,"online":true}`, true},
		{"boolean false", `{"deviceName":"lamp","type":0,"online":false}`, false},
		{"numeric one", `{"deviceName":"lamp","type":0,"online":1}`, true},
		{"numeric zero", `{"deviceName":"lamp","type":0,"online":0}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, reg := newTestDispatcher()

			var got *Event
			reg.Register("lamp", AttrStatus, func(e Event) { got = &e })

			if !d.HandleMessage("d/client/c", []byte(tt.payload)) {
				t.Fatalf("HandleMessage() = false, want handled")
			}
			if got == nil {
				t.Fatal("callback not invoked")
			}
			if got.Online != tt.wantOnline {
				t.Errorf("Online = %v, want %v", got.Online, tt.wantOnline)
			}
			if got.Device != "lamp" {
				t.Errorf("Device = %q, want %q", got.Device, "lamp")
			}
		})
	}
}

func TestHandleMessage_BrightnessClamped(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
	}{
		{"in range", `{"deviceName":"lamp","type":2,"brightness":42}`, 42},
		{"above range clamps to 100", `{"deviceName":"lamp","type":2,"brightness":150}`, 100},
		{"below range clamps to 0", `{"deviceName":"lamp","type":2,"brightness":-5}`, 0},
		{"numeric string", `{"deviceName":"lamp","type":2,"brightness":"55.5"}`, 55.5},
		{"boundary 100", `{"deviceName":"lamp","type":2,"brightness":100}`, 100},
		{"boundary 0", `{"deviceName":"lamp","type":2,"brightness":0}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, reg := newTestDispatcher()

			var got *Event
			reg.Register("lamp", AttrBrightness, func(e Event) { got = &e })

			if !d.HandleMessage("d/client/c", []byte(tt.payload)) {
				t.Fatalf("HandleMessage() = false, want handled")
			}
			if got == nil {
				t.Fatal("callback not invoked")
			}
			if got.Level != tt.want {
				t.Errorf("Level = %v, want %v", got.Level, tt.want)
			}
		})
	}
}

func TestHandleMessage_Color(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"lowercase with hash", `{"deviceName":"lamp","type":3,"rgb":"#1a2b3c"}`, "#1A2B3C"},
		{"uppercase no hash", `{"deviceName":"lamp","type":3,"rgb":"1A2B3C"}`, "#1A2B3C"},
		{"numeric value", `{"deviceName":"lamp","type":3,"rgb":112233}`, "#112233"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, reg := newTestDispatcher()

			var got *Event
			reg.Register("lamp", AttrColor, func(e Event) { got = &e })

			if !d.HandleMessage("d/client/c", []byte(tt.payload)) {
				t.Fatalf("HandleMessage() = false, want handled")
			}
			if got == nil {
				t.Fatal("callback not invoked")
			}
			if got.Color != tt.want {
				t.Errorf("Color = %q, want %q", got.Color, tt.want)
			}
		})
	}
}

func TestHandleMessage_SensorScaling(t *testing.T) {
	d, reg := newTestDispatcher()

	readings := map[SensorKind]float64{}
	reg.Register("th1", AttrSensor, func(e Event) { readings[e.Sensor] = e.Value })

	payload := `{"deviceName":"th1","type":5,"temp":294,"humi":614}`
	if !d.HandleMessage("d/client/c", []byte(payload)) {
		t.Fatalf("HandleMessage() = false, want handled")
	}

	if got := readings[SensorTemperature]; got != 29.4 {
		t.Errorf("temperature = %v, want 29.4", got)
	}
	if got := readings[SensorHumidity]; got != 61.4 {
		t.Errorf("humidity = %v, want 61.4", got)
	}
}

func TestHandleMessage_SensorSingleField(t *testing.T) {
	d, reg := newTestDispatcher()

	var events []Event
	reg.Register("th1", AttrSensor, func(e Event) { events = append(events, e) })

	payload := `{"deviceName":"th1","type":5,"temp":210}`
	if !d.HandleMessage("d/client/c", []byte(payload)) {
		t.Fatalf("HandleMessage() = false, want handled")
	}

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Sensor != SensorTemperature || events[0].Value != 21.0 {
		t.Errorf("event = %+v, want temperature 21.0", events[0])
	}
}

func TestFire_SpecificAndGeneralBothInvoked(t *testing.T) {
	d, reg := newTestDispatcher()

	var specific, general int
	reg.Register("lamp", AttrSwitch, func(Event) { specific++ })
	reg.Register(GeneralDevice, AttrSwitch, func(Event) { general++ })

	payload := `{"deviceName":"lamp","type":1,"on":true}`
	if !d.HandleMessage("d/client/c", []byte(payload)) {
		t.Fatalf("HandleMessage() = false, want handled")
	}

	if specific != 1 {
		t.Errorf("specific callback fired %d times, want 1", specific)
	}
	if general != 1 {
		t.Errorf("general callback fired %d times, want 1", general)
	}

	// A different device reaches only the general callback.
	payload = `{"deviceName":"other","type":1,"on":false}`
	if !d.HandleMessage("d/client/c", []byte(payload)) {
		t.Fatalf("HandleMessage() = false, want handled")
	}
	if specific != 1 {
		t.Errorf("specific callback fired for wrong device")
	}
	if general != 2 {
		t.Errorf("general callback fired %d times, want 2", general)
	}
}

func TestInvoke_RecoverFromCallbackPanic(t *testing.T) {
	d, reg := newTestDispatcher()

	reg.Register("lamp", AttrSwitch, func(Event) { panic("boom") })

	var general int
	reg.Register(GeneralDevice, AttrSwitch, func(Event) { general++ })

	payload := `{"deviceName":"lamp","type":1,"on":true}`
	if !d.HandleMessage("d/client/c", []byte(payload)) {
		t.Fatalf("HandleMessage() = false, want handled")
	}
	if general != 1 {
		t.Errorf("general callback skipped after specific callback panic")
	}
}

type captureRecorder struct {
	devices []string
	kinds   []string
	values  []float64
}

func (c *captureRecorder) WriteSensorReading(deviceID string, kind string, value float64) {
	c.devices = append(c.devices, deviceID)
	c.kinds = append(c.kinds, kind)
	c.values = append(c.values, value)
}

func TestSensorReadingsForwardedToRecorder(t *testing.T) {
	d, _ := newTestDispatcher()

	rec := &captureRecorder{}
	d.SetRecorder(rec)

	payload := `{"deviceName":"th1","type":5,"temp":294,"humi":614}`
	if !d.HandleMessage("d/client/c", []byte(payload)) {
		t.Fatalf("HandleMessage() = false, want handled")
	}

	if len(rec.values) != 2 {
		t.Fatalf("recorded %d readings, want 2", len(rec.values))
	}
	if rec.kinds[0] != "temperature" || rec.values[0] != 29.4 {
		t.Errorf("first reading = %s %v, want temperature 29.4", rec.kinds[0], rec.values[0])
	}
	if rec.kinds[1] != "humidity" || rec.values[1] != 61.4 {
		t.Errorf("second reading = %s %v, want humidity 61.4", rec.kinds[1], rec.values[1])
	}
}

func TestNormalizeRGB(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"#1a2b3c", "#1A2B3C", true},
		{"1A2B3C", "#1A2B3C", true},
		{"ffffff", "#FFFFFF", true},
		{"000000", "#000000", true},
		{" #aabbcc ", "#AABBCC", true},
		{"12", "", false},
		{"GGHHII", "", false},
		{"#1a2b3c4d", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeRGB(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("NormalizeRGB(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRegistry_UnregisterStopsDelivery(t *testing.T) {
	d, reg := newTestDispatcher()

	var fired int
	reg.Register("lamp", AttrSwitch, func(Event) { fired++ })

	payload := `{"deviceName":"lamp","type":1,"on":true}`
	d.HandleMessage("d/client/c", []byte(payload))
	reg.Unregister("lamp", AttrSwitch)
	d.HandleMessage("d/client/c", []byte(payload))

	if fired != 1 {
		t.Errorf("callback fired %d times, want 1", fired)
	}
}
