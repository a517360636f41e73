package domain

import (
	"fmt"
	"time"
)

// LinkStatus represents the operational state of a link
type LinkStatus string

const (
	LinkStatusInactive LinkStatus = "Inactive"
	LinkStatusPlanned  LinkStatus = "Planned"
	LinkStatusActive   LinkStatus = "Active"
)

// LinkType is the physical medium of a link
type LinkType string

const (
	LinkTypeFiveGHz          LinkType = "5 GHz"
	LinkTypeTwentyFourGHz    LinkType = "24 GHz"
	LinkTypeSixtyGHz         LinkType = "60 GHz"
	LinkTypeSeventyEightyGHz LinkType = "70-80 GHz"
	LinkTypeEthernet         LinkType = "Ethernet"
	LinkTypeFiber            LinkType = "Fiber"
	LinkTypeVPN              LinkType = "VPN"
)

// linkTypeImpliesLOS marks the link types that can only exist with radio
// line of sight between the two endpoints.
var linkTypeImpliesLOS = map[LinkType]bool{
	LinkTypeFiveGHz:          true,
	LinkTypeTwentyFourGHz:    true,
	LinkTypeSixtyGHz:         true,
	LinkTypeSeventyEightyGHz: true,
	LinkTypeEthernet:         false,
	LinkTypeFiber:            false,
	LinkTypeVPN:              false,
}

// ImpliesLineOfSight reports whether an active link of this type proves LOS
func (t LinkType) ImpliesLineOfSight() bool {
	return linkTypeImpliesLOS[t]
}

// Frequency thresholds in MHz, upper bounds exclusive
const (
	fiveGHzCeilingMHz       = 7000
	twentyFourGHzCeilingMHz = 40000
	sixtyGHzCeilingMHz      = 70000
)

// LinkTypeForExternal buckets an external link type and frequency (MHz) into
// a LinkType. guessed is true when the wireless frequency was missing.
func LinkTypeForExternal(externalType string, frequencyMHz *float64) (linkType LinkType, guessed bool) {
	switch externalType {
	case "ethernet":
		return LinkTypeEthernet, false
	case "pon":
		return LinkTypeFiber, false
	}

	if frequencyMHz == nil {
		return LinkTypeFiveGHz, true
	}

	switch f := *frequencyMHz; {
	case f < fiveGHzCeilingMHz:
		return LinkTypeFiveGHz, false
	case f < twentyFourGHzCeilingMHz:
		return LinkTypeTwentyFourGHz, false
	case f < sixtyGHzCeilingMHz:
		return LinkTypeSixtyGHz, false
	default:
		return LinkTypeSeventyEightyGHz, false
	}
}

// Link is a connection between two devices
type Link struct {
	ID                          string     `json:"id" db:"id"`
	FromDeviceID                string     `json:"from_device_id" db:"from_device_id"`
	ToDeviceID                  string     `json:"to_device_id" db:"to_device_id"`
	ExternalID                  string     `json:"external_id,omitempty" db:"external_id"`
	Status                      LinkStatus `json:"status" db:"status"`
	Type                        LinkType   `json:"type" db:"type"`
	InstallDate                 *time.Time `json:"install_date,omitempty" db:"install_date"`
	AbandonDate                 *time.Time `json:"abandon_date,omitempty" db:"abandon_date"`
	LastFunctioningDateEstimate *time.Time `json:"last_functioning_date_estimate,omitempty" db:"last_functioning_date_estimate"`
	Notes                       string     `json:"notes,omitempty" db:"notes"`
	CreatedAt                   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                   time.Time  `json:"updated_at" db:"updated_at"`
}

// Connects reports whether the link joins the two devices in either direction
func (l *Link) Connects(a, b string) bool {
	return (l.FromDeviceID == a && l.ToDeviceID == b) || (l.FromDeviceID == b && l.ToDeviceID == a)
}

// AppendNote adds a line to the link notes
func (l *Link) AppendNote(note string) {
	l.Notes = appendNote(l.Notes, note)
}

// String returns a short human-readable identifier used in notifications
func (l *Link) String() string {
	if l.ExternalID != "" {
		return fmt.Sprintf("link %s (UISP %s)", l.ID, l.ExternalID)
	}
	return fmt.Sprintf("link %s", l.ID)
}
