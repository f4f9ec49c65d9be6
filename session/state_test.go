package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corebrain/go-session-service/session"
)

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from session.State
		to   session.State
		ok   bool
	}{
		{session.StateUnauthenticated, session.StateAuthenticating, true},
		{session.StateAuthenticating, session.StateServiceTokenPending, true},
		{session.StateServiceTokenPending, session.StateReady, true},
		{session.StateReady, session.StateRefreshing, true},
		{session.StateRefreshing, session.StateReady, true},
		{session.StateReady, session.StateLoggingOut, true},
		{session.StateLoggingOut, session.StateUnauthenticated, true},

		{session.StateUnauthenticated, session.StateReady, false},
		{session.StateReady, session.StateAuthenticating, false},
		{session.StateRefreshing, session.StateLoggingOut, false},
		{session.StateLoggingOut, session.StateReady, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			require.Equal(t, tc.ok, tc.from.CanTransition(tc.to))
		})
	}
}
