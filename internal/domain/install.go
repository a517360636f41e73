package domain

import (
	"fmt"
	"time"
)

// InstallStatus represents where an install is in the onboarding workflow
type InstallStatus string

const (
	InstallStatusRequestReceived InstallStatus = "Request Received"
	InstallStatusPending         InstallStatus = "Pending"
	InstallStatusBlocked         InstallStatus = "Blocked"
	InstallStatusActive          InstallStatus = "Active"
	InstallStatusInactive        InstallStatus = "Inactive"
	InstallStatusClosed          InstallStatus = "Closed"
	InstallStatusNNReassigned    InstallStatus = "NN Assigned to Different Install"
)

// installStatusReservesNumber says whether an install in this status holds on
// to its own install number. Only untouched requests can donate theirs.
var installStatusReservesNumber = map[InstallStatus]bool{
	InstallStatusRequestReceived: false,
	InstallStatusPending:         true,
	InstallStatusBlocked:         true,
	InstallStatusActive:          true,
	InstallStatusInactive:        true,
	InstallStatusClosed:          true,
	InstallStatusNNReassigned:    true,
}

// ReservesNumber reports whether the status keeps the install number out of
// the allocation pool. Unknown statuses reserve.
func (s InstallStatus) ReservesNumber() bool {
	reserves, ok := installStatusReservesNumber[s]
	return !ok || reserves
}

// Install is a connection request for a member at a building
type Install struct {
	ID            string        `json:"id" db:"id"`
	InstallNumber int64         `json:"install_number" db:"install_number"`
	Status        InstallStatus `json:"status" db:"status"`
	BuildingID    *string       `json:"building_id,omitempty" db:"building_id"`
	NodeID        *string       `json:"node_id,omitempty" db:"node_id"`
	Notes         string        `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// String returns a short human-readable identifier used in notifications
func (i *Install) String() string {
	return fmt.Sprintf("install #%d", i.InstallNumber)
}

// DonatableInstallStatuses lists the statuses whose install numbers may be
// lent out as network numbers
func DonatableInstallStatuses() []InstallStatus {
	var statuses []InstallStatus
	for status, reserves := range installStatusReservesNumber {
		if !reserves {
			statuses = append(statuses, status)
		}
	}
	return statuses
}
