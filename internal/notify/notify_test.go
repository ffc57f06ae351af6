package notify

import "testing"

func TestSlotIsMutuallyExclusive(t *testing.T) {
	var s Slot
	if s.Current().Kind != None {
		t.Fatalf("zero slot should be empty")
	}
	s.Error("boom")
	s.Info("saved")
	if got := s.Current(); got.Kind != Info || got.Message != "saved" {
		t.Fatalf("info should supersede error, got %+v", got)
	}
	s.Error("")
	if got := s.Current(); got.Kind != None {
		t.Fatalf("empty message should clear the slot, got %+v", got)
	}
	before := s.Version()
	s.Clear()
	if s.Version() == before {
		t.Fatalf("version should advance on clear")
	}
}
