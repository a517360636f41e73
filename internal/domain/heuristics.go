package domain

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// modelTokenPattern matches hardware model and band tokens that contain
// digits but are not network numbers (af60, nsm5, 5ac, 24ghz, gen2).
var modelTokenPattern = regexp.MustCompile(`\b(?:lbe|nbe|pbe|lap|ps|af|gbe|ltu|nsm|wave|sxt)\d+[a-z0-9]*\b|\b\d+(?:ghz|ac|ax|xhd|lr|hd)\b|\bgen\d+\b`)

var networkNumberPattern = regexp.MustCompile(`\d+`)

// maxNetworkNumberDigits bounds a digit run that can still be an NN
const maxNetworkNumberDigits = 5

// NormalizeDeviceName lower-cases a device name and strips the network
// prefix and model tokens so only a candidate NN remains numeric.
func NormalizeDeviceName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "nycmesh", "")
	normalized = modelTokenPattern.ReplaceAllString(normalized, "")
	return normalized
}

// ExtractNetworkNumber returns the first number embedded in a device name
// after normalization. A digit run too long to be an NN (a serial, a MAC
// fragment) means the name carries no network number.
func ExtractNetworkNumber(name string) (int64, bool) {
	match := networkNumberPattern.FindString(NormalizeDeviceName(name))
	if match == "" || len(match) > maxNetworkNumberDigits {
		return 0, false
	}
	nn, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return 0, false
	}
	return nn, true
}

var compoundHeadings = map[string]float64{
	"northeast": 45, "ne": 45,
	"southeast": 135, "se": 135,
	"southwest": 225, "sw": 225,
	"northwest": 315, "nw": 315,
}

var verticalHeadings = map[string]float64{
	"north": 0, "n": 0,
	"south": 180, "s": 180,
}

var horizontalHeadings = map[string]float64{
	"east": 90, "e": 90,
	"west": 270, "w": 270,
}

// GuessAzimuth derives a compass heading in degrees from direction words in a
// device name. ok is false when nothing parsed; the heading is then 0.
func GuessAzimuth(name string) (heading float64, ok bool) {
	tokens := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	var (
		vertical, horizontal       float64
		hasVertical, hasHorizontal bool
	)
	for _, tok := range tokens {
		if h, found := compoundHeadings[tok]; found {
			return h, true
		}
		if h, found := verticalHeadings[tok]; found && !hasVertical {
			vertical, hasVertical = h, true
		}
		if h, found := horizontalHeadings[tok]; found && !hasHorizontal {
			horizontal, hasHorizontal = h, true
		}
	}

	switch {
	case hasVertical && hasHorizontal:
		// north+west must blend to 315, not 135
		if vertical == 0 && horizontal == 270 {
			vertical = 360
		}
		return (vertical + horizontal) / 2, true
	case hasVertical:
		return vertical, true
	case hasHorizontal:
		return horizontal, true
	}
	return 0, false
}

// beamWidthByModel maps hardware models to their horizontal beam width in degrees
var beamWidthByModel = map[string]float64{
	"LAP-120":       120,
	"LAP-GPS":       90,
	"LAP-HP":        90,
	"PS-5AC":        30,
	"WAVE-AP":       30,
	"WAVE-AP-MICRO": 90,
	"AF60-XR":       30,
	"AF-5XHD":       30,
}

// BeamWidthForModel returns the beam width for a model. ok is false when the
// model is unknown and the default width was used.
func BeamWidthForModel(model string) (width float64, ok bool) {
	if w, found := beamWidthByModel[strings.ToUpper(strings.TrimSpace(model))]; found {
		return w, true
	}
	return DefaultSectorWidthDeg, false
}
