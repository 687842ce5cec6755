package writing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		current State
		next    State
		want    bool
	}{
		{"general input to thinking", ModeGeneral, StateInput, StateThinking, true},
		{"general thinking to outline", ModeGeneral, StateThinking, StateOutlineConfirm, true},
		{"general outline to generating", ModeGeneral, StateOutlineConfirm, StateGenerating, true},
		{"general generating to finished", ModeGeneral, StateGenerating, StateFinished, true},
		{"general skip to generating", ModeGeneral, StateInput, StateGenerating, false},
		{"general jump to finished", ModeGeneral, StateInput, StateFinished, false},
		{"general backward", ModeGeneral, StateOutlineConfirm, StateThinking, false},
		{"general self loop", ModeGeneral, StateInput, StateInput, false},
		{"agent input to generating", ModeAgent, StateInput, StateGenerating, true},
		{"agent generating to finished", ModeAgent, StateGenerating, StateFinished, true},
		{"agent thinking not in flow", ModeAgent, StateInput, StateThinking, false},
		{"agent from outline not in flow", ModeAgent, StateOutlineConfirm, StateGenerating, false},
		{"unknown mode", Mode("OTHER"), StateInput, StateThinking, false},
		{"unknown state", ModeGeneral, State("PAUSED"), StateThinking, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidTransition(tt.mode, tt.current, tt.next))
		})
	}
}

func TestNextState(t *testing.T) {
	assert.Equal(t, StateThinking, NextState(ModeGeneral, StateInput))
	assert.Equal(t, StateGenerating, NextState(ModeGeneral, StateOutlineConfirm))
	assert.Equal(t, StateGenerating, NextState(ModeAgent, StateInput))
	assert.Equal(t, StateNone, NextState(ModeGeneral, StateFinished))
	assert.Equal(t, StateNone, NextState(ModeAgent, StateFinished))
	assert.Equal(t, StateNone, NextState(ModeAgent, StateThinking))
	assert.Equal(t, StateNone, NextState(Mode("OTHER"), StateInput))
}

func TestFlowReturnsCopy(t *testing.T) {
	f := Flow(ModeAgent)
	f[0] = StateFinished
	assert.Equal(t, StateInput, Flow(ModeAgent)[0])
	assert.Empty(t, Flow(Mode("OTHER")))
}

func TestModeAndStateIsValid(t *testing.T) {
	assert.True(t, ModeGeneral.IsValid())
	assert.False(t, Mode("general").IsValid())
	assert.True(t, StateOutlineConfirm.IsValid())
	assert.False(t, StateNone.IsValid())
}

var allStates = []State{StateInput, StateThinking, StateOutlineConfirm, StateGenerating, StateFinished, State("BOGUS")}

// Feature: writing, Property: a transition is valid exactly when next is
// what NextState returns.
func TestProperty_TransitionMatchesNextState(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mode := rapid.SampledFrom([]Mode{ModeGeneral, ModeAgent}).Draw(t, "mode")
		cur := rapid.SampledFrom(allStates).Draw(t, "current")
		next := rapid.SampledFrom(allStates).Draw(t, "next")

		want := NextState(mode, cur) != StateNone && NextState(mode, cur) == next
		if got := IsValidTransition(mode, cur, next); got != want {
			t.Fatalf("IsValidTransition(%s, %s, %s) = %v, want %v", mode, cur, next, got, want)
		}
	})
}

// Feature: writing, Property: following NextState from INPUT visits the
// whole flow and ends in FINISHED.
func TestProperty_WalkReachesFinished(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mode := rapid.SampledFrom([]Mode{ModeGeneral, ModeAgent}).Draw(t, "mode")
		steps := 0
		s := StateInput
		for NextState(mode, s) != StateNone {
			s = NextState(mode, s)
			steps++
		}
		if s != StateFinished || steps != len(Flow(mode))-1 {
			t.Fatalf("walk ended at %s after %d steps", s, steps)
		}
	})
}
