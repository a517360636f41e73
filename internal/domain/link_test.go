package domain

import "testing"

func freq(f float64) *float64 { return &f }

func TestLinkTypeForExternal(t *testing.T) {
	tests := []struct {
		name        string
		extType     string
		frequency   *float64
		want        LinkType
		wantGuessed bool
	}{
		{"ethernet", "ethernet", nil, LinkTypeEthernet, false},
		{"pon", "pon", nil, LinkTypeFiber, false},
		{"5ghz", "wireless", freq(5800), LinkTypeFiveGHz, false},
		{"just under 7000", "wireless", freq(6999), LinkTypeFiveGHz, false},
		{"7000 is 24ghz tier", "wireless", freq(7000), LinkTypeTwentyFourGHz, false},
		{"24ghz", "wireless", freq(24100), LinkTypeTwentyFourGHz, false},
		{"60ghz", "wireless", freq(60480), LinkTypeSixtyGHz, false},
		{"70ghz", "wireless", freq(70000), LinkTypeSeventyEightyGHz, false},
		{"missing frequency", "wireless", nil, LinkTypeFiveGHz, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, guessed := LinkTypeForExternal(tt.extType, tt.frequency)
			if got != tt.want || guessed != tt.wantGuessed {
				t.Errorf("LinkTypeForExternal = %s/%v, want %s/%v", got, guessed, tt.want, tt.wantGuessed)
			}
		})
	}
}

func TestLinkTypeImpliesLineOfSight(t *testing.T) {
	for _, lt := range []LinkType{LinkTypeEthernet, LinkTypeFiber, LinkTypeVPN} {
		if lt.ImpliesLineOfSight() {
			t.Errorf("%s should not imply LOS", lt)
		}
	}
	for _, lt := range []LinkType{LinkTypeFiveGHz, LinkTypeTwentyFourGHz, LinkTypeSixtyGHz, LinkTypeSeventyEightyGHz} {
		if !lt.ImpliesLineOfSight() {
			t.Errorf("%s should imply LOS", lt)
		}
	}
}

func TestLinkConnects(t *testing.T) {
	l := &Link{FromDeviceID: "a", ToDeviceID: "b"}
	if !l.Connects("a", "b") || !l.Connects("b", "a") {
		t.Error("Connects should ignore direction")
	}
	if l.Connects("a", "c") {
		t.Error("Connects should not match other devices")
	}
}

func TestBuildingPair(t *testing.T) {
	if NewBuildingPair("x", "y") != NewBuildingPair("y", "x") {
		t.Error("pairs should be unordered")
	}
	if !NewBuildingPair("x", "x").SameBuilding() {
		t.Error("self pair should be same building")
	}
}
