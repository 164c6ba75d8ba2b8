package proc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankInfo_Rank(t *testing.T) {
	testCases := []struct {
		description string
		info        RankInfo
		size        uint64
		expected    float64
	}{
		{
			description: "default ratios",
			info:        RankInfo{Priority: 3, ArrivalTime: 2, ExecutedCycle: 0.5, Ratios: DefaultRatios()},
			size:        10,
			expected:    15.5,
		},
		{
			description: "size ignored",
			info:        RankInfo{Priority: 5, ArrivalTime: 1, Ratios: Ratios{Priority: 1, ArrivalTime: 2}},
			size:        4096,
			expected:    7,
		},
		{
			description: "zero weights",
			info:        RankInfo{Priority: 4, ArrivalTime: 100, ExecutedCycle: 3},
			size:        8192,
			expected:    0,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.InDelta(t, tc.expected, tc.info.Rank(tc.size), 1e-9)
		})
	}
}

func TestRatios_Validate(t *testing.T) {
	assert.NoError(t, DefaultRatios().Validate())
	assert.NoError(t, Ratios{}.Validate())
	err := Ratios{Priority: 1, ArrivalTime: -1}.Validate()
	assert.True(t, errors.Is(err, ErrNegativeRatio))
	assert.Contains(t, err.Error(), "arrival time")
}

func TestQueue(t *testing.T) {
	assert.Equal(t, RoundRobin, DefaultQueue(1))
	assert.Equal(t, RoundRobin, DefaultQueue(2))
	assert.Equal(t, LCFS, DefaultQueue(3))
	assert.True(t, BJF.Valid())
	assert.False(t, Queue(4).Valid())
	assert.False(t, Queue(-1).Valid())

	q, ok := ParseQueue("3")
	assert.True(t, ok)
	assert.Equal(t, BJF, q)
	q, ok = ParseQueue("rr")
	assert.True(t, ok)
	assert.Equal(t, RoundRobin, q)
	_, ok = ParseQueue("fifo")
	assert.False(t, ok)
}

func TestProcess_Reset(t *testing.T) {
	p := &Process{Slot: 7, PID: 12, Name: "sh", State: Zombie, Parent: 0}
	p.Reset()
	assert.Equal(t, 7, p.Slot)
	assert.Equal(t, 0, p.PID)
	assert.Equal(t, "", p.Name)
	assert.Equal(t, Unused, p.State)
	assert.Equal(t, NoParent, p.Parent)
	assert.Equal(t, "unused", p.State.String())
	for _, addr := range p.Shared {
		assert.EqualValues(t, ^uint64(0), uint64(addr))
	}
}
