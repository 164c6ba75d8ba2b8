package proc

// State represents the lifecycle state of a process slot
type State int

const (
	Unused State = iota
	Embryo
	Sleeping
	Runnable
	Running
	Zombie
)

var stateNames = [...]string{
	Unused:   "unused",
	Embryo:   "embryo",
	Sleeping: "sleeping",
	Runnable: "runnable",
	Running:  "running",
	Zombie:   "zombie",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "???"
	}
	return stateNames[s]
}

// IsLive reports whether the slot holds a process
func (s State) IsLive() bool {
	return s != Unused
}
