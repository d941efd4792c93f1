package obd

import (
	"testing"

	"obd-ecu-sim/canbus"
	"obd-ecu-sim/vehicle"
)

type testLogger struct{}

func (testLogger) Printf(format string, v ...interface{}) {}
func (testLogger) Debug(format string, v ...interface{})  {}
func (testLogger) Error(format string, v ...interface{})  {}

type fakeSender struct {
	sent    []canbus.Frame
	failNext bool
}

func (f *fakeSender) Send(frame canbus.Frame) error {
	if f.failNext {
		f.failNext = false
		return errSendFailed
	}
	f.sent = append(f.sent, frame)
	return nil
}

var errSendFailed = sendError("simulated send failure")

type sendError string

func (e sendError) Error() string { return string(e) }

func newTestDispatcher() (*Dispatcher, *vehicle.Store, *fakeSender) {
	store := vehicle.New(vehicle.NewDefault("1HGCM82633A004352", "CAL-0001"))
	sender := &fakeSender{}
	return New(store, sender, testLogger{}), store, sender
}

func requestFrame(id uint32, bytes ...byte) canbus.Frame {
	var data [8]byte
	copy(data[:], bytes)
	return canbus.Frame{ID: id, Data: data, Length: 8}
}

func TestDispatcher_RPMQueryAtIdle(t *testing.T) {
	d, store, sender := newTestDispatcher()
	store.Apply(func(s *vehicle.Snapshot) { s.Engine.RPM = 800 })

	d.HandleFrame(requestFrame(0x7DF, 0x02, 0x01, 0x0C))

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 response, got %d", len(sender.sent))
	}
	got := sender.sent[0]
	if got.ID != 0x7E8 {
		t.Errorf("response ID: got 0x%03X, want 0x7E8", got.ID)
	}
	want := [8]byte{0x04, 0x41, 0x0C, 0x0C, 0x80, 0, 0, 0}
	if got.Data != want {
		t.Errorf("response data: got %02X, want %02X", got.Data, want)
	}
}

func TestDispatcher_SpeedQuery(t *testing.T) {
	d, store, sender := newTestDispatcher()
	store.Apply(func(s *vehicle.Snapshot) { s.Vehicle.Speed = 65 })

	d.HandleFrame(requestFrame(0x7E0, 0x02, 0x01, 0x0D))

	got := sender.sent[0]
	if got.ID != 0x7E8 {
		t.Errorf("response ID: got 0x%03X, want 0x7E8 (request+8)", got.ID)
	}
	want := [8]byte{0x03, 0x41, 0x0D, 0x41, 0, 0, 0, 0}
	if got.Data != want {
		t.Errorf("response data: got %02X, want %02X", got.Data, want)
	}
}

func TestDispatcher_CoolantTempQuery(t *testing.T) {
	d, store, sender := newTestDispatcher()
	store.Apply(func(s *vehicle.Snapshot) { s.Engine.CoolantTemp = 90 })

	d.HandleFrame(requestFrame(0x7DF, 0x02, 0x01, 0x05))

	want := [8]byte{0x03, 0x41, 0x05, 130, 0, 0, 0, 0}
	if sender.sent[0].Data != want {
		t.Errorf("response data: got %02X, want %02X", sender.sent[0].Data, want)
	}
}

func TestDispatcher_UnsupportedPIDReturnsNegativeResponse(t *testing.T) {
	d, _, sender := newTestDispatcher()

	d.HandleFrame(requestFrame(0x7DF, 0x02, 0x01, 0x99))

	want := [8]byte{0x03, 0x7F, 0x01, 0x12, 0, 0, 0, 0}
	if sender.sent[0].Data != want {
		t.Errorf("response data: got %02X, want %02X", sender.sent[0].Data, want)
	}
}

func TestDispatcher_ClearDTCsAlwaysAcks(t *testing.T) {
	d, store, sender := newTestDispatcher()
	store.Apply(func(s *vehicle.Snapshot) {
		s.DTCs = []vehicle.DTC{{Code: "P0301", Status: vehicle.DTCConfirmed}}
		s.Vehicle.MILStatus = true
	})

	d.HandleFrame(requestFrame(0x7DF, 0x01, 0x04))

	want := [8]byte{0x01, 0x44, 0, 0, 0, 0, 0, 0}
	if sender.sent[0].Data != want {
		t.Errorf("response data: got %02X, want %02X", sender.sent[0].Data, want)
	}

	snap := store.ReadSnapshot()
	if len(snap.DTCs) != 0 || snap.Vehicle.MILStatus {
		t.Errorf("expected DTCs cleared and MIL off, got %+v", snap.Vehicle)
	}
}

func TestDispatcher_ReadDTCsReturnsConfirmedOnly(t *testing.T) {
	d, store, sender := newTestDispatcher()
	store.Apply(func(s *vehicle.Snapshot) {
		s.DTCs = []vehicle.DTC{
			{Code: "P0171", Status: vehicle.DTCPending},
			{Code: "P0301", Status: vehicle.DTCConfirmed},
		}
	})

	d.HandleFrame(requestFrame(0x7DF, 0x01, 0x03))

	got := sender.sent[0]
	if got.Data[1] != 0x43 || got.Data[2] != 1 {
		t.Fatalf("expected mode response 0x43 with count 1, got %02X", got.Data)
	}
	a, b := got.Data[3], got.Data[4]
	if code := DecodeDTC(a, b); code != "P0301" {
		t.Errorf("expected P0301 in response, got %s", code)
	}
}

func TestDispatcher_VINQuery(t *testing.T) {
	d, _, sender := newTestDispatcher()

	d.HandleFrame(requestFrame(0x7DF, 0x02, 0x09, 0x02))

	got := sender.sent[0]
	if got.Data[1] != 0x49 || got.Data[2] != 0x02 || got.Data[3] != 0x01 {
		t.Fatalf("unexpected VIN response header: %02X", got.Data)
	}
	// Single-frame transport truncates the 17-char VIN; only the bytes
	// that fit in the 8-byte frame survive.
	if got.Data[4] != '1' {
		t.Errorf("expected VIN to start with '1', got %q", got.Data[4])
	}
}

func TestDispatcher_UnknownModeReturnsNegativeResponse(t *testing.T) {
	d, _, sender := newTestDispatcher()

	d.HandleFrame(requestFrame(0x7DF, 0x02, 0x08, 0x00))

	want := [8]byte{0x03, 0x7F, 0x08, 0x11, 0, 0, 0, 0}
	if sender.sent[0].Data != want {
		t.Errorf("response data: got %02X, want %02X", sender.sent[0].Data, want)
	}
}

func TestDispatcher_FunctionalAddressingRespondsOnBasePhysicalID(t *testing.T) {
	d, _, sender := newTestDispatcher()
	d.HandleFrame(requestFrame(0x7DF, 0x02, 0x01, 0x0C))
	if sender.sent[0].ID != 0x7E8 {
		t.Errorf("functional request should respond on 0x7E8, got 0x%03X", sender.sent[0].ID)
	}
}

func TestDispatcher_PhysicalAddressingRespondsOnRequestPlusEight(t *testing.T) {
	d, _, sender := newTestDispatcher()
	d.HandleFrame(requestFrame(0x7E3, 0x02, 0x01, 0x0D))
	if sender.sent[0].ID != 0x7EB {
		t.Errorf("physical request 0x7E3 should respond on 0x7EB, got 0x%03X", sender.sent[0].ID)
	}
}

func TestDispatcher_IgnoresFramesOutsideRequestIDRange(t *testing.T) {
	d, _, sender := newTestDispatcher()
	d.HandleFrame(requestFrame(0x123, 0x02, 0x01, 0x0C))
	if len(sender.sent) != 0 {
		t.Fatalf("expected no response for a non-OBD frame, got %d", len(sender.sent))
	}
}

func TestDispatcher_DropsFramesShorterThanMinimum(t *testing.T) {
	d, _, sender := newTestDispatcher()
	frame := requestFrame(0x7DF, 0x01)
	frame.Length = 1
	d.HandleFrame(frame)
	if len(sender.sent) != 0 {
		t.Fatalf("expected malformed short frame to be dropped, got %d responses", len(sender.sent))
	}
}

func TestDispatcher_StatsCountersTrackRequestsAndResponses(t *testing.T) {
	d, store, _ := newTestDispatcher()
	d.HandleFrame(requestFrame(0x7DF, 0x02, 0x01, 0x0C))
	d.HandleFrame(requestFrame(0x7DF, 0x02, 0x01, 0x0D))

	stats := store.StatsSnapshot()
	if stats.RequestsReceived != 2 {
		t.Errorf("requests received: got %d, want 2", stats.RequestsReceived)
	}
	if stats.ResponsesSent != 2 {
		t.Errorf("responses sent: got %d, want 2", stats.ResponsesSent)
	}
}

func TestDispatcher_SendFailureIncrementsErrorCounter(t *testing.T) {
	d, store, sender := newTestDispatcher()
	sender.failNext = true

	d.HandleFrame(requestFrame(0x7DF, 0x02, 0x01, 0x0C))

	stats := store.StatsSnapshot()
	if stats.Errors != 1 {
		t.Errorf("errors: got %d, want 1", stats.Errors)
	}
	if stats.ResponsesSent != 0 {
		t.Errorf("responses sent should not increment on failure, got %d", stats.ResponsesSent)
	}
}

func TestDispatcher_SupportedPIDsMaskQuery(t *testing.T) {
	d, _, sender := newTestDispatcher()
	d.HandleFrame(requestFrame(0x7DF, 0x02, 0x01, 0x00))

	got := sender.sent[0]
	if got.Data[1] != 0x41 || got.Data[2] != 0x00 {
		t.Fatalf("expected mode/PID echo 0x41 0x00, got %02X", got.Data)
	}
	// PID 0x0C (RPM) is bit 20 of the 0x00 window (offset 12 -> bit 32-12=20).
	mask := uint32(got.Data[3])<<24 | uint32(got.Data[4])<<16 | uint32(got.Data[5])<<8 | uint32(got.Data[6])
	if mask == 0 {
		t.Fatal("expected a non-zero supported-PID mask")
	}
}
