package domain

import "testing"

func TestExtractNetworkNumber(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   int64
		wantOK bool
	}{
		{"plain", "nycmesh-1234-east", 1234, true},
		{"model before nn", "nycmesh-af60-1234", 1234, true},
		{"band token stripped", "nycmesh-ps-5ac-227", 227, true},
		{"24ghz prefix", "NYCMesh-24GHz-713-af24hd", 713, true},
		{"no digits", "nycmesh-roof-sector", 0, false},
		{"only model digits", "nycmesh-af60", 0, false},
		{"empty", "", 0, false},
		{"five digits", "nycmesh-81920-omni", 81920, true},
		{"six digit run is not truncated", "nycmesh-123456", 0, false},
		{"long serial", "nycmesh-20240601123-lbe", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractNetworkNumber(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ExtractNetworkNumber(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ExtractNetworkNumber(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestGuessAzimuth(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"nycmesh-1234-north", 0, true},
		{"nycmesh-1234-east", 90, true},
		{"nycmesh-1234-south", 180, true},
		{"nycmesh-1234-west", 270, true},
		{"nycmesh-1234-northeast", 45, true},
		{"nycmesh-1234-SW", 225, true},
		{"nycmesh-1234-north-west", 315, true},
		{"nycmesh-1234-south-east", 135, true},
		{"nycmesh-1234-omni", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := GuessAzimuth(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("GuessAzimuth(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("GuessAzimuth(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBeamWidthForModel(t *testing.T) {
	if w, ok := BeamWidthForModel("lap-120"); !ok || w != 120 {
		t.Errorf("lap-120 = %v/%v, want 120/true", w, ok)
	}
	if w, ok := BeamWidthForModel("UNKNOWN-1"); ok || w != DefaultSectorWidthDeg {
		t.Errorf("unknown model = %v/%v, want default/false", w, ok)
	}
}
