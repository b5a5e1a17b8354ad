package paging

import "fmt"

// LoadState is Loading, NotLoading or LoadError.
type LoadState interface {
	loadState()
}

type Loading struct{}

type NotLoading struct {
	EndOfPaginationReached bool
}

type LoadError struct {
	Err error
}

func (Loading) loadState()    {}
func (NotLoading) loadState() {}
func (LoadError) loadState()  {}

// Incomplete is the resting state before anything is known.
var Incomplete LoadState = NotLoading{}

// LoadStates holds one state per direction.
type LoadStates struct {
	Refresh LoadState
	Prepend LoadState
	Append  LoadState
}

// IdleLoadStates is the state of a session that has not loaded yet.
func IdleLoadStates() LoadStates {
	return LoadStates{Refresh: Incomplete, Prepend: Incomplete, Append: Incomplete}
}

func (s LoadStates) Get(t LoadType) LoadState {
	switch t {
	case LoadRefresh:
		return s.Refresh
	case LoadPrepend:
		return s.Prepend
	case LoadAppend:
		return s.Append
	default:
		panic(fmt.Sprintf("unknown load type %d", int(t)))
	}
}

func (s LoadStates) With(t LoadType, state LoadState) LoadStates {
	switch t {
	case LoadRefresh:
		s.Refresh = state
	case LoadPrepend:
		s.Prepend = state
	case LoadAppend:
		s.Append = state
	default:
		panic(fmt.Sprintf("unknown load type %d", int(t)))
	}
	return s
}

// FirstError returns the first failed direction, refresh first. The error is
// nil when no direction failed.
func (s LoadStates) FirstError() (LoadType, error) {
	for _, t := range []LoadType{LoadRefresh, LoadPrepend, LoadAppend} {
		if e, ok := s.Get(t).(LoadError); ok {
			return t, e.Err
		}
	}
	return LoadRefresh, nil
}

// Describe renders a state for logs and status lines.
func Describe(state LoadState) string {
	switch st := state.(type) {
	case Loading:
		return "loading"
	case NotLoading:
		if st.EndOfPaginationReached {
			return "end"
		}
		return "idle"
	case LoadError:
		if st.Err == nil {
			return "error"
		}
		return "error: " + st.Err.Error()
	case nil:
		return "idle"
	default:
		panic(fmt.Sprintf("unknown load state %T", state))
	}
}

// StateFromResult maps a mediator result onto the consumer-facing load state.
func StateFromResult(result MediatorResult) LoadState {
	switch r := result.(type) {
	case Success:
		return NotLoading{EndOfPaginationReached: r.EndOfPaginationReached}
	case Failure:
		return LoadError{Err: r.Err}
	default:
		panic(fmt.Sprintf("unknown mediator result %T", result))
	}
}
