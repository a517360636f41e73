package domain

import (
	"fmt"
	"time"
)

// LOSSource records how a line-of-sight assertion came to exist
type LOSSource string

const (
	LOSSourceHumanAnnotated LOSSource = "Human Annotated"
	LOSSourceExistingLink   LOSSource = "Existing Link"
)

// LOS asserts unobstructed radio visibility between two buildings
type LOS struct {
	ID             string    `json:"id" db:"id"`
	FromBuildingID string    `json:"from_building_id" db:"from_building_id"`
	ToBuildingID   string    `json:"to_building_id" db:"to_building_id"`
	Source         LOSSource `json:"source" db:"source"`
	AnalysisDate   time.Time `json:"analysis_date" db:"analysis_date"`
	Notes          string    `json:"notes,omitempty" db:"notes"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// String returns a short human-readable identifier used in notifications
func (l *LOS) String() string {
	return fmt.Sprintf("LOS %s (%s <-> %s)", l.ID, l.FromBuildingID, l.ToBuildingID)
}

// BuildingPair is an unordered pair of building ids
type BuildingPair struct {
	A string
	B string
}

// NewBuildingPair orders the ids so (x, y) and (y, x) compare equal
func NewBuildingPair(x, y string) BuildingPair {
	if x > y {
		x, y = y, x
	}
	return BuildingPair{A: x, B: y}
}

// SameBuilding reports whether both ends are the same building
func (p BuildingPair) SameBuilding() bool {
	return p.A == p.B
}
