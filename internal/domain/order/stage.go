package order

// Stage is the lifecycle partition an order record lives in
type Stage string

const (
	StagePending Stage = "pending"
	StageOpen    Stage = "open"
	StageClosed  Stage = "closed"
)

// AllStages lists the partitions in lifecycle order
var AllStages = []Stage{StagePending, StageOpen, StageClosed}

// IsValid reports whether s names a known partition
func (s Stage) IsValid() bool {
	switch s {
	case StagePending, StageOpen, StageClosed:
		return true
	default:
		return false
	}
}

// Rank orders stages along the lifecycle; unknown stages rank lowest.
func (s Stage) Rank() int {
	switch s {
	case StagePending:
		return 1
	case StageOpen:
		return 2
	case StageClosed:
		return 3
	default:
		return 0
	}
}

// CanMoveTo reports whether a record in s may be relocated to next
func (s Stage) CanMoveTo(next Stage) bool {
	return next.IsValid() && next.Rank() >= s.Rank()
}

func (s Stage) String() string {
	return string(s)
}

func maxStage(a, b Stage) Stage {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
