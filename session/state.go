package session

// State is the authentication progress of one session, modeled as a single
// exhaustive value rather than independent loading/error flags.
type State string

const (
	StateUnauthenticated     State = "unauthenticated"
	StateAuthenticating      State = "authenticating"
	StateServiceTokenPending State = "service_token_pending"
	StateReady               State = "ready"
	StateRefreshing          State = "refreshing"
	StateLoggingOut          State = "logging_out"
)

// validTransitions defines the state machine:
// Unauthenticated → Authenticating → ServiceTokenPending → Ready →
// Refreshing → Ready|Unauthenticated → LoggingOut → Unauthenticated.
// Any state may collapse to Unauthenticated on a defensive purge.
var validTransitions = map[State][]State{
	StateUnauthenticated:     {StateAuthenticating},
	StateAuthenticating:      {StateServiceTokenPending, StateUnauthenticated},
	StateServiceTokenPending: {StateReady, StateUnauthenticated},
	StateReady:               {StateRefreshing, StateLoggingOut, StateUnauthenticated},
	StateRefreshing:          {StateReady, StateUnauthenticated},
	StateLoggingOut:          {StateUnauthenticated},
}

// CanTransition reports whether moving from s to next is a defined
// transition.
func (s State) CanTransition(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
