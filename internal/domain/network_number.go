package domain

import (
	"fmt"
	"sort"
)

const (
	// DefaultNetworkNumberMin is the lowest assignable NN
	DefaultNetworkNumberMin int64 = 101
	// DefaultNetworkNumberMax is the highest assignable NN
	DefaultNetworkNumberMax int64 = 8192
)

// NetworkNumberSpace is the closed interval of assignable network numbers
type NetworkNumberSpace struct {
	Min int64 `json:"min" yaml:"min"`
	Max int64 `json:"max" yaml:"max"`
}

// DefaultNetworkNumberSpace returns the production NN range
func DefaultNetworkNumberSpace() NetworkNumberSpace {
	return NetworkNumberSpace{Min: DefaultNetworkNumberMin, Max: DefaultNetworkNumberMax}
}

// Validate checks the range is well formed
func (s NetworkNumberSpace) Validate() error {
	if s.Min <= 0 {
		return fmt.Errorf("network number min must be positive, got %d", s.Min)
	}
	if s.Max < s.Min {
		return fmt.Errorf("network number max %d is below min %d", s.Max, s.Min)
	}
	return nil
}

// Contains reports whether nn lies within [Min, Max]
func (s NetworkNumberSpace) Contains(nn int64) bool {
	return nn >= s.Min && nn <= s.Max
}

// Size returns the number of assignable values
func (s NetworkNumberSpace) Size() int64 {
	return s.Max - s.Min + 1
}

// FirstFree returns the lowest number in range that is not reserved.
// reserved may contain values outside the range and duplicates.
func (s NetworkNumberSpace) FirstFree(reserved []int64) (int64, bool) {
	sorted := make([]int64, 0, len(reserved))
	for _, nn := range reserved {
		if s.Contains(nn) {
			sorted = append(sorted, nn)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	candidate := s.Min
	for _, nn := range sorted {
		if nn < candidate {
			continue
		}
		if nn > candidate {
			break
		}
		candidate++
	}

	if candidate > s.Max {
		return 0, false
	}
	return candidate, true
}
