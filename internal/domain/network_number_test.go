package domain

import "testing"

func TestNetworkNumberSpaceFirstFree(t *testing.T) {
	space := NetworkNumberSpace{Min: 101, Max: 110}

	tests := []struct {
		name     string
		reserved []int64
		want     int64
		wantOK   bool
	}{
		{"empty reserved set", nil, 101, true},
		{"min taken", []int64{101}, 102, true},
		{"gap in the middle", []int64{101, 102, 104}, 103, true},
		{"unsorted with duplicates", []int64{103, 101, 102, 101, 105}, 104, true},
		{"values outside range ignored", []int64{1, 50, 9000, 101}, 102, true},
		{"exhausted", []int64{101, 102, 103, 104, 105, 106, 107, 108, 109, 110}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := space.FirstFree(tt.reserved)
			if ok != tt.wantOK {
				t.Fatalf("FirstFree ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("FirstFree = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNetworkNumberSpaceContains(t *testing.T) {
	space := DefaultNetworkNumberSpace()

	if space.Contains(100) {
		t.Error("100 should be below the default range")
	}
	if !space.Contains(101) || !space.Contains(8192) {
		t.Error("range bounds should be inclusive")
	}
	if space.Contains(8193) {
		t.Error("8193 should be above the default range")
	}
	if space.Size() != 8092 {
		t.Errorf("Size() = %d, want 8092", space.Size())
	}
}

func TestNetworkNumberSpaceValidate(t *testing.T) {
	if err := (NetworkNumberSpace{Min: 0, Max: 10}).Validate(); err == nil {
		t.Error("expected error for non-positive min")
	}
	if err := (NetworkNumberSpace{Min: 10, Max: 5}).Validate(); err == nil {
		t.Error("expected error for inverted range")
	}
	if err := DefaultNetworkNumberSpace().Validate(); err != nil {
		t.Errorf("default space should be valid: %v", err)
	}
}

func TestInstallStatusReservesNumber(t *testing.T) {
	if InstallStatusRequestReceived.ReservesNumber() {
		t.Error("request received installs must be donatable")
	}
	for _, s := range []InstallStatus{InstallStatusPending, InstallStatusActive, InstallStatusNNReassigned} {
		if !s.ReservesNumber() {
			t.Errorf("%s should reserve its number", s)
		}
	}
	if !InstallStatus("Something New").ReservesNumber() {
		t.Error("unknown statuses should reserve")
	}
}
