package ptable

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/viant/kcore/internal/clock"
	"github.com/viant/kcore/runtime/proc"
)

const (
	tableHeader = "Process_Name    PID     State    Queue   Cycle   Arrival Priority R_Prty  R_Arvl  R_Exec  R_Size  Rank"
	tableRule   = "------------------------------------------------------------------------------------------------------"
)

var tableColumns = []int{16, 8, 9, 8, 8, 8, 8, 9, 8, 8, 8}

// Info is a point in time copy of a live process
type Info struct {
	Name       string      `json:"name"`
	PID        int         `json:"pid"`
	ParentPID  int         `json:"parentPid,omitempty"`
	State      proc.State  `json:"state"`
	Queue      proc.Queue  `json:"queue"`
	Cycle      float64     `json:"cycle"`
	Arrival    int64       `json:"arrival"`
	Priority   int         `json:"priority"`
	Ratios     proc.Ratios `json:"ratios"`
	Rank       float64     `json:"rank"`
	Size       uint64      `json:"size"`
	LastRun    int64       `json:"lastRun"`
	CPU        int         `json:"cpu"`
	Killed     bool        `json:"killed,omitempty"`
	ExitStatus int         `json:"exitStatus,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Snapshot returns every live process in slot order
func (s *Service) Snapshot() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ret []Info
	for _, p := range s.procs {
		if p.State == proc.Unused {
			continue
		}
		info := Info{
			Name:       p.Name,
			PID:        p.PID,
			State:      p.State,
			Queue:      p.Queue,
			Cycle:      p.Rank.ExecutedCycle,
			Arrival:    p.Rank.ArrivalTime,
			Priority:   p.Rank.Priority,
			Ratios:     p.Rank.Ratios,
			Rank:       p.CurrentRank(),
			Size:       p.Size,
			LastRun:    p.LastRun,
			CPU:        p.CPU,
			Killed:     p.Killed,
			ExitStatus: p.ExitStatus,
			CreatedAt:  p.CreatedAt,
		}
		if p.Parent != proc.NoParent {
			info.ParentPID = s.procs[p.Parent].PID
		}
		ret = append(ret, info)
	}
	return ret
}

// WriteTable prints the process table in fixed width columns
func (s *Service) WriteTable(w io.Writer) error {
	writer := bufio.NewWriter(w)
	writer.WriteString(tableHeader + "\n" + tableRule + "\n")
	for _, info := range s.Snapshot() {
		values := []string{
			info.Name,
			fmt.Sprint(info.PID),
			info.State.String(),
			fmt.Sprint(int(info.Queue)),
			fmt.Sprint(int(info.Cycle)),
			fmt.Sprint(info.Arrival),
			fmt.Sprint(info.Priority),
			fmt.Sprint(int(info.Ratios.Priority)),
			fmt.Sprint(int(info.Ratios.ArrivalTime)),
			fmt.Sprint(int(info.Ratios.ExecutedCycle)),
			fmt.Sprint(int(info.Ratios.ProcessSize)),
		}
		for i, value := range values {
			writer.WriteString(value)
			if pad := tableColumns[i] - len(value); pad > 0 {
				writer.WriteString(strings.Repeat(" ", pad))
			}
		}
		writer.WriteString(fmt.Sprint(int(info.Rank)) + "\n")
	}
	return writer.Flush()
}

// Lifetime returns wall time elapsed since pid was created
func (s *Service) Lifetime(pid int) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.lookup(pid)
	if p == nil {
		return 0, fmt.Errorf("lifetime %d: %w", pid, ErrNotFound)
	}
	return clock.Now().Sub(p.CreatedAt), nil
}

// UncleCount returns the number of siblings of pid's parent
func (s *Service) UncleCount(pid int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.lookup(pid)
	if p == nil {
		return 0, fmt.Errorf("uncle count %d: %w", pid, ErrNotFound)
	}
	if p.Parent == proc.NoParent || s.procs[p.Parent].Parent == proc.NoParent {
		return 0, fmt.Errorf("uncle count %d: %w", pid, ErrNoGrandparent)
	}
	grandparent := s.procs[p.Parent].Parent
	count := 0
	for _, candidate := range s.procs {
		if candidate.State != proc.Unused && candidate.Parent == grandparent {
			count++
		}
	}
	return count - 1, nil
}
