package domain

import (
	"fmt"
	"time"
)

// DeviceStatus represents the operational state of a device
type DeviceStatus string

const (
	DeviceStatusInactive  DeviceStatus = "Inactive"
	DeviceStatusActive    DeviceStatus = "Active"
	DeviceStatusPotential DeviceStatus = "Potential"
)

// DeviceKind discriminates the variant stored alongside a device
type DeviceKind string

const (
	DeviceKindDevice      DeviceKind = "device"
	DeviceKindSector      DeviceKind = "sector"
	DeviceKindAccessPoint DeviceKind = "access_point"
)

const (
	// DefaultSectorRadiusKm is the coverage radius given to imported sectors
	DefaultSectorRadiusKm = 1.0
	// DefaultSectorWidthDeg is used when the model is missing from the beam width table
	DefaultSectorWidthDeg = 90.0
)

// DeviceVariant is the subtype payload of a device. It is one of
// *SectorFields or *AccessPointFields; a plain device has a nil variant.
type DeviceVariant interface {
	Kind() DeviceKind
}

// SectorFields holds the coverage wedge of a broadcast device
type SectorFields struct {
	AzimuthDeg float64 `json:"azimuth_deg"`
	WidthDeg   float64 `json:"width_deg"`
	RadiusKm   float64 `json:"radius_km"`
	// AzimuthGuessed is false when no direction could be parsed and the
	// azimuth fell back to 0, which otherwise reads as "north".
	AzimuthGuessed bool `json:"azimuth_guessed"`
}

// Kind implements DeviceVariant
func (*SectorFields) Kind() DeviceKind { return DeviceKindSector }

// AccessPointFields holds the mounting position of an access point
type AccessPointFields struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

// Kind implements DeviceVariant
func (*AccessPointFields) Kind() DeviceKind { return DeviceKindAccessPoint }

// Device is a piece of radio or network hardware mounted on a node
type Device struct {
	ID          string        `json:"id"`
	NodeID      string        `json:"node_id"`
	Name        string        `json:"name,omitempty"`
	ExternalID  string        `json:"external_id,omitempty"`
	Status      DeviceStatus  `json:"status"`
	InstallDate *time.Time    `json:"install_date,omitempty"`
	AbandonDate *time.Time    `json:"abandon_date,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Variant     DeviceVariant `json:"variant,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Kind returns the discriminator of the device variant
func (d *Device) Kind() DeviceKind {
	if d.Variant == nil {
		return DeviceKindDevice
	}
	return d.Variant.Kind()
}

// Sector returns the sector payload, or nil for other kinds
func (d *Device) Sector() *SectorFields {
	s, _ := d.Variant.(*SectorFields)
	return s
}

// AccessPoint returns the access point payload, or nil for other kinds
func (d *Device) AccessPoint() *AccessPointFields {
	ap, _ := d.Variant.(*AccessPointFields)
	return ap
}

// AppendNote adds a line to the device notes
func (d *Device) AppendNote(note string) {
	d.Notes = appendNote(d.Notes, note)
}

// String returns a short human-readable identifier used in notifications
func (d *Device) String() string {
	if d.Name != "" {
		return fmt.Sprintf("%s %q", d.Kind(), d.Name)
	}
	return fmt.Sprintf("%s %s", d.Kind(), d.ID)
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n\n" + note
}
