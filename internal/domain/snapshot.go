package domain

import "time"

// ExternalDevice is a device as reported by the external inventory source
type ExternalDevice struct {
	ID           string     `json:"id" yaml:"id" validate:"required"`
	Name         string     `json:"name" yaml:"name"`
	Category     string     `json:"category" yaml:"category"`
	Type         string     `json:"type" yaml:"type"`
	Status       string     `json:"status,omitempty" yaml:"status,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	LastSeen     *time.Time `json:"lastSeen,omitempty" yaml:"lastSeen,omitempty"`
	Model        string     `json:"model,omitempty" yaml:"model,omitempty"`
	WirelessMode string     `json:"wirelessMode,omitempty" yaml:"wirelessMode,omitempty"`
}

// ExternalLink is a link as reported by the external inventory source
type ExternalLink struct {
	ID           string   `json:"id" yaml:"id" validate:"required"`
	FromDeviceID string   `json:"fromDeviceId" yaml:"fromDeviceId" validate:"required"`
	ToDeviceID   string   `json:"toDeviceId" yaml:"toDeviceId" validate:"required"`
	State        string   `json:"state,omitempty" yaml:"state,omitempty"`
	Type         string   `json:"type" yaml:"type"`
	Frequency    *float64 `json:"frequency,omitempty" yaml:"frequency,omitempty"`
}

// Snapshot is one authoritative view of the external inventory
type Snapshot struct {
	Source    string           `json:"source,omitempty" yaml:"source,omitempty"`
	FetchedAt time.Time        `json:"fetched_at" yaml:"fetched_at"`
	Devices   []ExternalDevice `json:"devices" yaml:"devices"`
	Links     []ExternalLink   `json:"links" yaml:"links"`
}

// networkingCategories are the UISP device categories that carry mesh traffic
var networkingCategories = map[string]bool{
	"wireless": true,
	"optical":  true,
	"wired":    false,
	"unknown":  false,
}

// IsNetworking reports whether the device category should be reconciled
func (d ExternalDevice) IsNetworking() bool {
	return networkingCategories[d.Category]
}

// Active reports whether the external status counts as up. A missing status
// is treated as active.
func (d ExternalDevice) Active() bool {
	return d.Status == "" || d.Status == "active"
}

// Active reports whether the external link state counts as up
func (l ExternalLink) Active() bool {
	return l.State == "" || l.State == "active"
}

// IsBroadcast reports whether the device metadata describes a point-to-multipoint AP
func (d ExternalDevice) IsBroadcast() bool {
	return d.WirelessMode == "ap-ptmp"
}
