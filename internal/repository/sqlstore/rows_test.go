package sqlstore

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshinv/internal/domain"
)

// ============================================================================
// Helper Function Tests
// ============================================================================

func TestNullToString(t *testing.T) {
	tests := []struct {
		name     string
		input    sql.NullString
		expected string
	}{
		{name: "valid string", input: sql.NullString{String: "test", Valid: true}, expected: "test"},
		{name: "invalid string", input: sql.NullString{String: "test", Valid: false}, expected: ""},
		{name: "empty valid string", input: sql.NullString{String: "", Valid: true}, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, nullToString(tt.input))
		})
	}
}

func TestStringToNull(t *testing.T) {
	assert.Equal(t, sql.NullString{String: "abc", Valid: true}, stringToNull("abc"))
	assert.Equal(t, sql.NullString{}, stringToNull(""))
}

func TestTimeConversions(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))

	nt := timePtrToNull(&now)
	require.True(t, nt.Valid)
	assert.Equal(t, time.UTC, nt.Time.Location())
	assert.True(t, nt.Time.Equal(now))

	assert.False(t, timePtrToNull(nil).Valid)

	back := nullToTimePtr(nt)
	require.NotNil(t, back)
	assert.True(t, back.Equal(now))
	assert.Nil(t, nullToTimePtr(sql.NullTime{Time: now}))
}

func TestFloatConversions(t *testing.T) {
	v := 12.5
	assert.Equal(t, sql.NullFloat64{Float64: 12.5, Valid: true}, floatPtrToNull(&v))
	assert.False(t, floatPtrToNull(nil).Valid)
	assert.Nil(t, nullToFloatPtr(sql.NullFloat64{}))
	assert.Equal(t, 12.5, *nullToFloatPtr(sql.NullFloat64{Float64: 12.5, Valid: true}))
}

// ============================================================================
// Device Row Tests
// ============================================================================

func TestDeviceRowToDomain(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name  string
		row   deviceRow
		check func(t *testing.T, d domain.Device)
	}{
		{
			name: "plain device",
			row: deviceRow{
				ID: "d1", NodeID: "n1", Name: "nycmesh-1234-lbe",
				ExternalID: sql.NullString{String: "uisp-1", Valid: true},
				Status:     "Active", Kind: "device", CreatedAt: created, UpdatedAt: created,
			},
			check: func(t *testing.T, d domain.Device) {
				assert.Equal(t, "uisp-1", d.ExternalID)
				assert.Equal(t, domain.DeviceStatusActive, d.Status)
				assert.Equal(t, domain.DeviceKindDevice, d.Kind())
				assert.Nil(t, d.Variant)
			},
		},
		{
			name: "sector",
			row: deviceRow{
				ID: "d2", NodeID: "n1", Status: "Active", Kind: "sector",
				AzimuthDeg:     sql.NullFloat64{Float64: 270, Valid: true},
				WidthDeg:       sql.NullFloat64{Float64: 120, Valid: true},
				RadiusKm:       sql.NullFloat64{Float64: 1, Valid: true},
				AzimuthGuessed: sql.NullBool{Bool: true, Valid: true},
			},
			check: func(t *testing.T, d domain.Device) {
				require.NotNil(t, d.Sector())
				assert.Equal(t, 270.0, d.Sector().AzimuthDeg)
				assert.Equal(t, 120.0, d.Sector().WidthDeg)
				assert.True(t, d.Sector().AzimuthGuessed)
				assert.Empty(t, d.ExternalID)
			},
		},
		{
			name: "access point without altitude",
			row: deviceRow{
				ID: "d3", NodeID: "n1", Status: "Potential", Kind: "access_point",
				Latitude:  sql.NullFloat64{Float64: 40.7, Valid: true},
				Longitude: sql.NullFloat64{Float64: -73.9, Valid: true},
			},
			check: func(t *testing.T, d domain.Device) {
				require.NotNil(t, d.AccessPoint())
				assert.Equal(t, 40.7, d.AccessPoint().Latitude)
				assert.Nil(t, d.AccessPoint().Altitude)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.row.toDomain())
		})
	}
}

func TestDeviceInsertArgs(t *testing.T) {
	d := &domain.Device{
		ID:     "d1",
		NodeID: "n1",
		Name:   "sector-east",
		Status: domain.DeviceStatusActive,
		Variant: &domain.SectorFields{
			AzimuthDeg: 90, WidthDeg: 30, RadiusKm: 1,
		},
	}

	args := deviceInsertArgs(d)
	require.Len(t, args, 18)
	assert.Equal(t, "d1", args[0])
	assert.Equal(t, sql.NullString{}, args[3], "empty external id stored as NULL")
	assert.Equal(t, "sector", args[8])
	assert.Equal(t, sql.NullFloat64{Float64: 90, Valid: true}, args[9])
	assert.Equal(t, sql.NullBool{Bool: false, Valid: true}, args[12])
	assert.Equal(t, sql.NullFloat64{}, args[13], "sector has no latitude")
}
