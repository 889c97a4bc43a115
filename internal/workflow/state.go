package workflow

// State is the position of a run in the assessment workflow. Each
// transition is one successful remote call.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateSubjectCreated
	StateAssessmentStarted
	StateUploaded
	StateEnded
	StatePolling
	StateScored
)

var stateNames = map[State]string{
	StateUnauthenticated:   "unauthenticated",
	StateAuthenticated:     "authenticated",
	StateSubjectCreated:    "subject-created",
	StateAssessmentStarted: "assessment-started",
	StateUploaded:          "uploaded",
	StateEnded:             "ended",
	StatePolling:           "polling",
	StateScored:            "scored",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
