package analysis

// Phase enum
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseFailed  Phase = "failed"
)

// State is the single live session state. Result is set only in Success,
// Failure only in Failed.
type State struct {
	Phase   Phase
	Result  *Result
	Failure *Failure
}

func Idle() State    { return State{Phase: PhaseIdle} }
func Loading() State { return State{Phase: PhaseLoading} }

func Succeeded(r Result) State {
	r = r.clone()
	return State{Phase: PhaseSuccess, Result: &r}
}

func Failed(f *Failure) State {
	return State{Phase: PhaseFailed, Failure: f}
}

// Reason returns the failure code, or "" outside the Failed phase.
func (s State) Reason() string {
	if s.Failure == nil {
		return ""
	}
	return s.Failure.Reason()
}

// Snapshot returns a copy safe to hand to other goroutines.
func (s State) Snapshot() State {
	if s.Result != nil {
		r := s.Result.clone()
		s.Result = &r
	}
	return s
}
