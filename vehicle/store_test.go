package vehicle

import (
	"sync"
	"testing"
	"time"
)

func newTestStore() *Store {
	return New(NewDefault("1HGCM82633A004352", "CAL-0001"))
}

func TestStore_ReadSnapshotIsIndependentCopy(t *testing.T) {
	s := newTestStore()

	snap := s.ReadSnapshot()
	snap.Engine.RPM = 9999
	snap.DTCs = append(snap.DTCs, DTC{Code: "P0300"})

	fresh := s.ReadSnapshot()
	if fresh.Engine.RPM == 9999 {
		t.Fatal("mutating a snapshot mutated the store")
	}
	if len(fresh.DTCs) != 0 {
		t.Fatal("appending to a snapshot's DTCs mutated the store")
	}
}

func TestStore_ApplyMutatesInPlace(t *testing.T) {
	s := newTestStore()
	s.Apply(func(snap *Snapshot) {
		snap.Engine.RPM = 4200
		snap.Vehicle.Speed = 80
	})

	got := s.ReadSnapshot()
	if got.Engine.RPM != 4200 || got.Vehicle.Speed != 80 {
		t.Fatalf("Apply did not persist mutation: %+v", got)
	}
}

func TestStore_ClearDTCsResetsMILAndCount(t *testing.T) {
	s := newTestStore()
	s.Apply(func(snap *Snapshot) {
		snap.DTCs = []DTC{{Code: "P0301", Status: DTCConfirmed, OccurrenceCount: 1}}
		snap.Vehicle.MILStatus = true
		snap.Vehicle.DTCCount = 1
	})

	s.ClearDTCs()

	got := s.ReadSnapshot()
	if len(got.DTCs) != 0 {
		t.Errorf("expected empty DTC list, got %v", got.DTCs)
	}
	if got.Vehicle.MILStatus {
		t.Error("expected MIL off after clear")
	}
	if got.Vehicle.DTCCount != 0 {
		t.Errorf("expected dtc_count 0, got %d", got.Vehicle.DTCCount)
	}
}

func TestStore_ClearDTCsOnEmptyListSucceeds(t *testing.T) {
	s := newTestStore()
	// Should not panic or error even though the list is already empty.
	s.ClearDTCs()
	got := s.ReadSnapshot()
	if got.Vehicle.MILStatus || got.Vehicle.DTCCount != 0 {
		t.Errorf("expected cleared state, got %+v", got.Vehicle)
	}
}

func TestStore_StatsCountersIncrement(t *testing.T) {
	s := newTestStore()
	s.IncRequestsReceived()
	s.IncRequestsReceived()
	s.IncResponsesSent()
	s.IncErrors()

	stats := s.StatsSnapshot()
	if stats.RequestsReceived != 2 {
		t.Errorf("requests received: got %d, want 2", stats.RequestsReceived)
	}
	if stats.ResponsesSent != 1 {
		t.Errorf("responses sent: got %d, want 1", stats.ResponsesSent)
	}
	if stats.Errors != 1 {
		t.Errorf("errors: got %d, want 1", stats.Errors)
	}
}

func TestStore_ConfirmedDTCCount(t *testing.T) {
	s := newTestStore()
	s.Apply(func(snap *Snapshot) {
		snap.DTCs = []DTC{
			{Code: "P0171", Status: DTCPending},
			{Code: "P0300", Status: DTCConfirmed},
			{Code: "P0420", Status: DTCConfirmed},
		}
	})

	got := s.ReadSnapshot()
	if n := got.ConfirmedDTCCount(); n != 2 {
		t.Errorf("expected 2 confirmed DTCs, got %d", n)
	}
}

func TestStore_ConcurrentReadWriteDoesNotRace(t *testing.T) {
	s := newTestStore()
	var wg sync.WaitGroup

	stop := time.Now().Add(50 * time.Millisecond)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for time.Now().Before(stop) {
			s.Apply(func(snap *Snapshot) {
				snap.Engine.RPM++
			})
		}
	}()
	go func() {
		defer wg.Done()
		for time.Now().Before(stop) {
			_ = s.ReadSnapshot()
		}
	}()
	wg.Wait()
}

func TestStore_Introspect(t *testing.T) {
	s := newTestStore()
	s.Apply(func(snap *Snapshot) {
		snap.DTCs = []DTC{{Code: "P0300", Status: DTCConfirmed}}
	})

	m := s.Introspect()
	engine, ok := m["engine"].(map[string]interface{})
	if !ok {
		t.Fatal("expected engine sub-map")
	}
	if _, ok := engine["rpm"]; !ok {
		t.Error("expected rpm field in engine map")
	}

	codes, ok := m["dtc_codes"].([]string)
	if !ok || len(codes) != 1 || codes[0] != "P0300" {
		t.Errorf("expected dtc_codes = [P0300], got %v", m["dtc_codes"])
	}
}
