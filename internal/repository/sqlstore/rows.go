package sqlstore

import (
	"database/sql"
	"time"

	"meshinv/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull stores empty strings as NULL
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullToTimePtr safely converts sql.NullTime to *time.Time
func nullToTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// timePtrToNull safely converts *time.Time to sql.NullTime
func timePtrToNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullToFloatPtr(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		f := nf.Float64
		return &f
	}
	return nil
}

func floatPtrToNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// ============================================================================
// Device Row
// ============================================================================
//
// Devices, sectors and access points share one table. The kind column is
// the discriminator; variant columns are NULL for other kinds.
//
// CRITICAL: deviceColumns and deviceInsertArgs must list columns in the
// same order.

// deviceRow holds all columns from a device query
type deviceRow struct {
	ID             string          `db:"id"`
	NodeID         string          `db:"node_id"`
	Name           string          `db:"name"`
	ExternalID     sql.NullString  `db:"external_id"`
	Status         string          `db:"status"`
	InstallDate    sql.NullTime    `db:"install_date"`
	AbandonDate    sql.NullTime    `db:"abandon_date"`
	Notes          string          `db:"notes"`
	Kind           string          `db:"kind"`
	AzimuthDeg     sql.NullFloat64 `db:"azimuth_deg"`
	WidthDeg       sql.NullFloat64 `db:"width_deg"`
	RadiusKm       sql.NullFloat64 `db:"radius_km"`
	AzimuthGuessed sql.NullBool    `db:"azimuth_guessed"`
	Latitude       sql.NullFloat64 `db:"latitude"`
	Longitude      sql.NullFloat64 `db:"longitude"`
	Altitude       sql.NullFloat64 `db:"altitude"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

const deviceColumns = `id, node_id, name, external_id, status, install_date, abandon_date, notes,
	kind, azimuth_deg, width_deg, radius_km, azimuth_guessed, latitude, longitude, altitude,
	created_at, updated_at`

// toDomain converts the scanned row to a domain.Device
func (r *deviceRow) toDomain() domain.Device {
	d := domain.Device{
		ID:          r.ID,
		NodeID:      r.NodeID,
		Name:        r.Name,
		ExternalID:  nullToString(r.ExternalID),
		Status:      domain.DeviceStatus(r.Status),
		InstallDate: nullToTimePtr(r.InstallDate),
		AbandonDate: nullToTimePtr(r.AbandonDate),
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	switch domain.DeviceKind(r.Kind) {
	case domain.DeviceKindSector:
		d.Variant = &domain.SectorFields{
			AzimuthDeg:     r.AzimuthDeg.Float64,
			WidthDeg:       r.WidthDeg.Float64,
			RadiusKm:       r.RadiusKm.Float64,
			AzimuthGuessed: r.AzimuthGuessed.Valid && r.AzimuthGuessed.Bool,
		}
	case domain.DeviceKindAccessPoint:
		d.Variant = &domain.AccessPointFields{
			Latitude:  r.Latitude.Float64,
			Longitude: r.Longitude.Float64,
			Altitude:  nullToFloatPtr(r.Altitude),
		}
	}

	return d
}

// deviceInsertArgs prepares arguments in deviceColumns order
func deviceInsertArgs(d *domain.Device) []interface{} {
	var (
		azimuth, width, radius, lat, lon, alt sql.NullFloat64
		guessed                               sql.NullBool
	)

	switch v := d.Variant.(type) {
	case *domain.SectorFields:
		azimuth = sql.NullFloat64{Float64: v.AzimuthDeg, Valid: true}
		width = sql.NullFloat64{Float64: v.WidthDeg, Valid: true}
		radius = sql.NullFloat64{Float64: v.RadiusKm, Valid: true}
		guessed = sql.NullBool{Bool: v.AzimuthGuessed, Valid: true}
	case *domain.AccessPointFields:
		lat = sql.NullFloat64{Float64: v.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: v.Longitude, Valid: true}
		alt = floatPtrToNull(v.Altitude)
	}

	return []interface{}{
		d.ID,
		d.NodeID,
		d.Name,
		stringToNull(d.ExternalID),
		string(d.Status),
		timePtrToNull(d.InstallDate),
		timePtrToNull(d.AbandonDate),
		d.Notes,
		string(d.Kind()),
		azimuth,
		width,
		radius,
		guessed,
		lat,
		lon,
		alt,
		d.CreatedAt.UTC(),
		d.UpdatedAt.UTC(),
	}
}

// ============================================================================
// Column Lists
// ============================================================================

const nodeColumns = `id, network_number, status, name, notes, created_at, updated_at`

const buildingColumns = `id, address, primary_node_id, notes, created_at`

const installColumns = `id, install_number, status, building_id, node_id, notes, created_at, updated_at`

// linkColumns folds NULL external ids to the empty string for struct scanning
const linkColumns = `id, from_device_id, to_device_id, COALESCE(external_id, '') AS external_id, status, type,
	install_date, abandon_date, last_functioning_date_estimate, notes, created_at, updated_at`

const losColumns = `id, from_building_id, to_building_id, source, analysis_date, notes, created_at, updated_at`
