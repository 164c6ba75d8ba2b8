package proc

import (
	"errors"
	"fmt"
)

const (
	PriorityMin     = 1
	PriorityMax     = 5
	PriorityDefault = 3
)

// ErrNegativeRatio is returned by Ratios.Validate.
var ErrNegativeRatio = errors.New("negative rank ratio")

// Ratios weights each term of the weighted-rank function
type Ratios struct {
	Priority      float64 `json:"priority" yaml:"priority"`
	ArrivalTime   float64 `json:"arrivalTime" yaml:"arrivalTime"`
	ExecutedCycle float64 `json:"executedCycle" yaml:"executedCycle"`
	ProcessSize   float64 `json:"processSize" yaml:"processSize"`
}

// DefaultRatios weights every term equally
func DefaultRatios() Ratios {
	return Ratios{Priority: 1, ArrivalTime: 1, ExecutedCycle: 1, ProcessSize: 1}
}

// Validate rejects negative weights.
func (r Ratios) Validate() error {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"priority", r.Priority},
		{"arrival time", r.ArrivalTime},
		{"executed cycle", r.ExecutedCycle},
		{"process size", r.ProcessSize},
	} {
		if v.value < 0 {
			return fmt.Errorf("%s ratio %v: %w", v.name, v.value, ErrNegativeRatio)
		}
	}
	return nil
}

// RankInfo holds the inputs of the weighted-rank ("BJF") function
type RankInfo struct {
	Priority      int
	ArrivalTime   int64
	ExecutedCycle float64
	Ratios
}

// NewRankInfo returns the default profile of a new process
func NewRankInfo() RankInfo {
	return RankInfo{Priority: PriorityDefault, Ratios: DefaultRatios()}
}

// Rank computes the weighted rank for an address space of size bytes. Lower
// ranks are scheduled first.
func (r *RankInfo) Rank(size uint64) float64 {
	return float64(r.Priority)*r.Ratios.Priority +
		float64(r.ArrivalTime)*r.Ratios.ArrivalTime +
		r.ExecutedCycle*r.Ratios.ExecutedCycle +
		float64(size)*r.Ratios.ProcessSize
}
