package proc

import "strconv"

// Queue identifies the scheduling discipline that owns a process
type Queue int

const (
	// Unset means no discipline; change_queue resolves it to the pid default.
	Unset Queue = iota
	RoundRobin
	LCFS
	BJF
)

func (q Queue) String() string {
	switch q {
	case Unset:
		return "unset"
	case RoundRobin:
		return "rr"
	case LCFS:
		return "lcfs"
	case BJF:
		return "bjf"
	}
	return strconv.Itoa(int(q))
}

// Valid reports whether q names an assignable discipline or Unset.
func (q Queue) Valid() bool {
	return q >= Unset && q <= BJF
}

// DefaultQueue returns the discipline a freshly forked process joins. The two
// bootstrap processes stay interactive.
func DefaultQueue(pid int) Queue {
	if pid == 1 || pid == 2 {
		return RoundRobin
	}
	return LCFS
}

// ParseQueue converts a numeric or symbolic queue name.
func ParseQueue(s string) (Queue, bool) {
	switch s {
	case "unset":
		return Unset, true
	case "rr", "roundrobin", "round-robin":
		return RoundRobin, true
	case "lcfs":
		return LCFS, true
	case "bjf":
		return BJF, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return Queue(n), true
}
