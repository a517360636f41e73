package repository

import (
	"context"

	"meshinv/internal/domain"
)

// NetworkNumberLock is the named lock serializing NN assignment
const NetworkNumberLock = "nn_assignment_lock"

// Store opens transactions against the inventory database
type Store interface {
	// InTx runs fn in a single transaction. fn's error rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Close releases resources
	Close() error
}

// Tx is the data access surface available inside a transaction.
// Methods named ...ForUpdate take row locks where the dialect supports them.
type Tx interface {
	// LockNamed blocks until the named advisory lock is held. It is released
	// when the transaction ends.
	LockNamed(ctx context.Context, name string) error

	// Buildings
	CreateBuilding(ctx context.Context, b *domain.Building) error
	GetBuilding(ctx context.Context, id string) (*domain.Building, error)
	SetBuildingPrimaryNode(ctx context.Context, buildingID, nodeID string) error

	// Nodes
	CreateNode(ctx context.Context, n *domain.Node) error
	GetNode(ctx context.Context, id string) (*domain.Node, error)
	GetNodeByNetworkNumber(ctx context.Context, nn int64) (*domain.Node, error)
	UpdateNode(ctx context.Context, n *domain.Node) error
	AddNodeBuilding(ctx context.Context, nodeID, buildingID string) error
	NodeBuildings(ctx context.Context, nodeID string) ([]domain.Building, error)

	// Installs
	CreateInstall(ctx context.Context, i *domain.Install) error
	GetInstall(ctx context.Context, id string) (*domain.Install, error)
	GetInstallForUpdate(ctx context.Context, id string) (*domain.Install, error)
	GetInstallByNumber(ctx context.Context, installNumber int64) (*domain.Install, error)
	UpdateInstall(ctx context.Context, i *domain.Install) error

	// ReservedNetworkNumbers returns every bound node NN plus the install
	// numbers of installs that reserve their own number and have no NN.
	ReservedNetworkNumbers(ctx context.Context) ([]int64, error)

	// Devices
	CreateDevice(ctx context.Context, d *domain.Device) error
	GetDevice(ctx context.Context, id string) (*domain.Device, error)
	FindDevicesByExternalID(ctx context.Context, externalID string) ([]domain.Device, error)
	FindDevicesByExternalIDForUpdate(ctx context.Context, externalID string) ([]domain.Device, error)
	ListDevicesWithExternalID(ctx context.Context) ([]domain.Device, error)
	UpdateDevice(ctx context.Context, d *domain.Device) error

	// Links
	CreateLink(ctx context.Context, l *domain.Link) error
	FindLinksByExternalIDForUpdate(ctx context.Context, externalID string) ([]domain.Link, error)
	FindLinksByDevicePairForUpdate(ctx context.Context, deviceA, deviceB string) ([]domain.Link, error)
	ListLinksWithExternalID(ctx context.Context) ([]domain.Link, error)
	ListActiveLinks(ctx context.Context) ([]domain.Link, error)
	UpdateLink(ctx context.Context, l *domain.Link) error

	// Line of sight
	CreateLOS(ctx context.Context, los *domain.LOS) error
	FindLOSByBuildingPairForUpdate(ctx context.Context, buildingA, buildingB string) ([]domain.LOS, error)
	UpdateLOS(ctx context.Context, los *domain.LOS) error
}
