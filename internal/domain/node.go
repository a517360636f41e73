package domain

import (
	"fmt"
	"time"
)

// NodeStatus represents the lifecycle state of a node
type NodeStatus string

const (
	NodeStatusInactive NodeStatus = "Inactive"
	NodeStatusActive   NodeStatus = "Active"
	NodeStatusPlanned  NodeStatus = "Planned"
)

// Node is a mesh site identified by its network number
type Node struct {
	ID            string     `json:"id" db:"id"`
	NetworkNumber *int64     `json:"network_number,omitempty" db:"network_number"`
	Status        NodeStatus `json:"status" db:"status"`
	Name          string     `json:"name,omitempty" db:"name"`
	Notes         string     `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// HasNetworkNumber reports whether the node is bound to an NN
func (n *Node) HasNetworkNumber() bool {
	return n != nil && n.NetworkNumber != nil
}

// String returns a short human-readable identifier used in notifications
func (n *Node) String() string {
	if n.HasNetworkNumber() {
		return fmt.Sprintf("NN%d", *n.NetworkNumber)
	}
	return fmt.Sprintf("node %s", n.ID)
}

// Building is a physical structure hosting one or more nodes
type Building struct {
	ID            string    `json:"id" db:"id"`
	Address       string    `json:"address,omitempty" db:"address"`
	PrimaryNodeID *string   `json:"primary_node_id,omitempty" db:"primary_node_id"`
	Notes         string    `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// String returns a short human-readable identifier used in notifications
func (b *Building) String() string {
	if b.Address != "" {
		return b.Address
	}
	return fmt.Sprintf("building %s", b.ID)
}
