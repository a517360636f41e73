// Package domain defines the core inventory types for meshinv.
//
// This package contains the entities that describe a community mesh network:
// buildings, installs, nodes, devices, links and line-of-sight assertions,
// plus the flat records an external network-management system reports.
//
// # Network Numbers
//
// A network number (NN) identifies exactly one Node and doubles as its
// network-layer identity. NetworkNumberSpace defines the valid range and
// the search for the first free number given a reserved set.
//
// # Devices
//
// Device is a single table shared by plain devices, sectors and access
// points. The subtype is carried as a tagged variant (SectorFields,
// AccessPointFields or nil) rather than by embedding.
//
// # Heuristics
//
// UISP device names carry the NN of the node they are mounted on and often a
// compass direction. ExtractNetworkNumber, GuessAzimuth and BeamWidthForModel
// turn that metadata into inventory fields. Guesses are always reported as
// guesses so a volunteer can correct them.
//
// # Design Principles
//
// - No database or transport dependencies
// - Explicit enum to boolean tables instead of attribute lookups
// - Pure functions for every heuristic so they can be table tested
package domain
