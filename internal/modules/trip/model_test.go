package trip

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusNone, StatusActive, true},
		{StatusActive, StatusEnd, true},
		{StatusEnd, StatusEnd, false},
		{StatusEnd, StatusActive, false},
		{StatusActive, StatusActive, false},
		{StatusNone, StatusEnd, false},
		{Status("PAUSED"), StatusEnd, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusActive.Valid() || !StatusEnd.Valid() {
		t.Fatal("ACTIVE and END must be valid")
	}
	if StatusNone.Valid() || Status("active").Valid() {
		t.Fatal("only ACTIVE and END are valid trip statuses")
	}
}
