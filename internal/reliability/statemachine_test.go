package reliability

import (
	"testing"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/stretchr/testify/require"
)

func TestStateMachineValidTransitionSequence(t *testing.T) {
	sm := NewStateMachine(NewStateMachineConfig())
	require.Equal(t, model.StateIdle, sm.Current().Kind)

	require.NoError(t, sm.Transition(model.ConnectionState{Kind: model.StateConnecting, WalletID: "w1"}, "user connect"))
	require.NoError(t, sm.Transition(model.ConnectionState{Kind: model.StateConnected, WalletID: "w1"}, "authenticated"))
	require.Equal(t, model.StateConnected, sm.Current().Kind)
}

func TestStateMachineRejectsIllegalTransition(t *testing.T) {
	sm := NewStateMachine(NewStateMachineConfig())

	var invalidFrom, invalidTo model.ConnectionStateKind
	sm.OnInvalid(func(from, to model.ConnectionStateKind) {
		invalidFrom, invalidTo = from, to
	})

	err := sm.Transition(model.ConnectionState{Kind: model.StateSigning}, "bogus")
	require.Error(t, err)
	require.Equal(t, model.StateIdle, sm.Current().Kind, "state must not change on illegal transition")
	require.Equal(t, model.StateIdle, invalidFrom)
	require.Equal(t, model.StateSigning, invalidTo)
}

func TestStateMachineWaitForStable(t *testing.T) {
	sm := NewStateMachine(NewStateMachineConfig())
	require.NoError(t, sm.Transition(model.ConnectionState{Kind: model.StateConnecting}, "go"))

	done := make(chan model.ConnectionState, 1)
	go func() {
		s, err := sm.WaitForStable(1 * time.Second)
		require.NoError(t, err)
		done <- s
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, sm.Transition(model.ConnectionState{Kind: model.StateConnected}, "ok"))

	select {
	case s := <-done:
		require.Equal(t, model.StateConnected, s.Kind)
	case <-time.After(1 * time.Second):
		t.Fatal("waitForStable did not resolve")
	}
}

func TestStateMachineWaitForStableTimesOut(t *testing.T) {
	sm := NewStateMachine(NewStateMachineConfig())
	require.NoError(t, sm.Transition(model.ConnectionState{Kind: model.StateConnecting}, "go"))

	_, err := sm.WaitForStable(20 * time.Millisecond)
	require.Error(t, err)
}
