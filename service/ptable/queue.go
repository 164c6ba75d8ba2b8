package ptable

import (
	"errors"
	"fmt"
	"log"

	"github.com/viant/kcore/runtime/proc"
)

// ChangeQueue moves pid to queue q and returns the previous queue. Unset
// resolves to the default queue for the pid.
func (s *Service) ChangeQueue(pid int, q proc.Queue) (proc.Queue, error) {
	if !q.Valid() {
		return proc.Unset, fmt.Errorf("queue %d: %w", int(q), ErrInvalidQueue)
	}
	if q == proc.Unset {
		if pid <= 0 {
			return proc.Unset, fmt.Errorf("change queue %d: %w", pid, ErrNotFound)
		}
		q = proc.DefaultQueue(pid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.lookup(pid)
	if p == nil {
		return proc.Unset, fmt.Errorf("change queue %d: %w", pid, ErrNotFound)
	}
	prev := p.Queue
	if prev == q {
		return prev, fmt.Errorf("change queue %d to %v: %w", pid, q, ErrSameQueue)
	}
	s.setQueue(p, q, "change_queue")
	return prev, nil
}

func (s *Service) setQueue(p *proc.Process, q proc.Queue, reason string) {
	p.Queue = q
	if q == proc.LCFS {
		p.LastInLCFS = s.ticks.Now()
	}
	s.publish(EventQueue, p, reason)
}

// Age moves every runnable process that has not run for more than the
// aging threshold into round-robin and returns the migrated pids.
func (s *Service) Age(now int64) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var migrated []int
	for _, p := range s.procs {
		if p.State != proc.Runnable || p.Queue == proc.RoundRobin {
			continue
		}
		if now-p.LastRun > s.config.AgingThreshold {
			s.setQueue(p, proc.RoundRobin, "aging")
			migrated = append(migrated, p.PID)
		}
	}
	return migrated
}

// PromoteInteractive forces runnable processes with an interactive name into round-robin.
func (s *Service) PromoteInteractive(names map[string]bool) {
	if len(names) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.procs {
		if p.State == proc.Runnable && p.Queue != proc.RoundRobin && names[p.Name] {
			s.setQueue(p, proc.RoundRobin, "interactive")
		}
	}
}

// SetRankPriority sets the static priority used by the weighted-rank queue
func (s *Service) SetRankPriority(pid, priority int) error {
	if priority < proc.PriorityMin || priority > proc.PriorityMax {
		return fmt.Errorf("priority %d: %w", priority, ErrInvalidPriority)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.lookup(pid)
	if p == nil {
		return fmt.Errorf("set priority %d: %w", pid, ErrNotFound)
	}
	p.Rank.Priority = priority
	return nil
}

// SetRankRatios sets the rank weights of one process
func (s *Service) SetRankRatios(pid int, ratios proc.Ratios) error {
	if err := s.checkRatios(ratios); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.lookup(pid)
	if p == nil {
		return fmt.Errorf("set ratios %d: %w", pid, ErrNotFound)
	}
	p.Rank.Ratios = ratios
	return nil
}

// SetSystemRankRatios sets the rank weights of every slot
func (s *Service) SetSystemRankRatios(ratios proc.Ratios) error {
	if err := s.checkRatios(ratios); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.procs {
		p.Rank.Ratios = ratios
	}
	return nil
}

func (s *Service) checkRatios(ratios proc.Ratios) error {
	err := ratios.Validate()
	if err == nil {
		return nil
	}
	if s.config.Permissive && errors.Is(err, proc.ErrNegativeRatio) {
		log.Printf("warning: %v, applying anyway", err)
		return nil
	}
	return fmt.Errorf("%v: %w", err, ErrInvalidRatio)
}
