package paging

import "fmt"

// LoadType is the direction of a load request.
type LoadType int

const (
	LoadRefresh LoadType = iota
	LoadPrepend
	LoadAppend
)

func (t LoadType) String() string {
	switch t {
	case LoadRefresh:
		return "refresh"
	case LoadPrepend:
		return "prepend"
	case LoadAppend:
		return "append"
	default:
		return fmt.Sprintf("load_type(%d)", int(t))
	}
}

// InitializeAction is the answer of a mediator's Initialize step.
type InitializeAction int

const (
	// LaunchInitialRefresh blocks Prepend/Append until a Refresh succeeds.
	LaunchInitialRefresh InitializeAction = iota
	// SkipInitialRefresh starts the session from cached rows.
	SkipInitialRefresh
)

func (a InitializeAction) String() string {
	switch a {
	case LaunchInitialRefresh:
		return "launch_initial_refresh"
	case SkipInitialRefresh:
		return "skip_initial_refresh"
	default:
		return fmt.Sprintf("initialize_action(%d)", int(a))
	}
}

// MediatorResult is either Success or Failure.
type MediatorResult interface {
	mediatorResult()
}

type Success struct {
	EndOfPaginationReached bool
}

type Failure struct {
	Err error
}

func (Success) mediatorResult() {}
func (Failure) mediatorResult() {}

func (f Failure) Error() string {
	if f.Err == nil {
		return "mediator load failed"
	}
	return f.Err.Error()
}

func (f Failure) Unwrap() error { return f.Err }
