package simpleupload

// State is the lifecycle position of one upload attempt.
type State int

const (
	StateIdle State = iota
	StateAwaitingAuthorization
	StateUploading
	StateSucceeded
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAuthorization:
		return "awaiting_authorization"
	case StateUploading:
		return "uploading"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateAborted
}

// Outcome is the resolved result of an attempt.
// Exactly one of Result (Succeeded) or Err (Failed) is set; both are nil when
// the attempt was Aborted.
type Outcome struct {
	State  State
	Result *UploadResult
	Err    *UploadError
}

// Succeeded builds a successful outcome.
func Succeeded(result *UploadResult) Outcome {
	return Outcome{State: StateSucceeded, Result: result}
}

// Failed builds a failed outcome.
func Failed(err *UploadError) Outcome {
	return Outcome{State: StateFailed, Err: err}
}

// Aborted builds an aborted outcome.
func Aborted() Outcome {
	return Outcome{State: StateAborted}
}
