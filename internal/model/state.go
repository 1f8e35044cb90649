package model

// Status is the terminal result of a run.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Outcome records how a run ended.
type Outcome struct {
	Status  Status
	Message string
}

// State is owned by the worker for the duration of one run.
type State struct {
	RunID string

	NewConnectionString   string
	NewDataProviderString string

	OldConnectionString   string
	OldDataProviderString string
	OldEncrypted          bool

	ActiveUser      string
	RestartRequired bool
	PatchedTargets  []string
	Outcome         Outcome

	oldConnectionSet bool
	oldProviderSet   bool
}

// NewState returns an empty pending state for run id.
func NewState(runID string) *State {
	return &State{RunID: runID}
}

// CaptureOldConnection records the pre-existing connection string once per run.
func (s *State) CaptureOldConnection(value string, encrypted bool) bool {
	if s.oldConnectionSet {
		return false
	}
	s.OldConnectionString = value
	s.OldEncrypted = encrypted
	s.oldConnectionSet = true
	return true
}

// CaptureOldDataProvider records the pre-existing data provider string once per run.
func (s *State) CaptureOldDataProvider(value string) bool {
	if s.oldProviderSet {
		return false
	}
	s.OldDataProviderString = value
	s.oldProviderSet = true
	return true
}

// HasOldConnection reports whether the old connection string was captured.
func (s *State) HasOldConnection() bool {
	return s.oldConnectionSet
}

// HasOldValues reports whether any pre-existing value was captured.
func (s *State) HasOldValues() bool {
	return s.oldConnectionSet || s.oldProviderSet
}

// Succeed marks the run as succeeded.
func (s *State) Succeed() {
	s.Outcome = Outcome{Status: StatusSucceeded}
}

// Fail marks the run as failed with message.
func (s *State) Fail(message string) {
	s.Outcome = Outcome{Status: StatusFailed, Message: message}
}
