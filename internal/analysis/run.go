// Package analysis runs the response-analysis pipeline: validate and store the
// recording, analyse the video directly and fall back once to extracted audio.
package analysis

import (
	"errors"
	"slices"
	"time"

	"github.com/maauso/interview-feedback-api/internal/analysis/id"
)

// State is a step of a single analysis run.
type State string

const (
	// StateValidating is the initial state, before the upload is accepted.
	StateValidating State = "VALIDATING"
	// StateStored means the recording is on local disk.
	StateStored State = "STORED"
	// StateVideoAttempt means the recording is being analysed directly.
	StateVideoAttempt State = "VIDEO_ATTEMPT"
	// StateAudioFallback means extracted audio is being analysed.
	StateAudioFallback State = "AUDIO_FALLBACK"
	// StateSuccess is terminal: feedback was produced.
	StateSuccess State = "SUCCESS"
	// StateFailed is terminal: no feedback was produced.
	StateFailed State = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed. VIDEO_ATTEMPT
// has no edge back to itself and AUDIO_FALLBACK cannot be entered twice.
var validTransitions = map[State][]State{
	StateValidating:    {StateStored, StateFailed},
	StateStored:        {StateVideoAttempt, StateFailed},
	StateVideoAttempt:  {StateSuccess, StateAudioFallback},
	StateAudioFallback: {StateSuccess, StateFailed},
	StateSuccess:       {},
	StateFailed:        {},
}

func canTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}

// Run tracks the progress of one request through the pipeline. It is owned by
// a single goroutine.
type Run struct {
	ID           string
	QuestionType string
	State        State
	// History lists every state entered, starting with VALIDATING.
	History   []State
	StartedAt time.Time
}

func newRun(questionType string) *Run {
	return &Run{
		ID:           id.Generate(),
		QuestionType: questionType,
		State:        StateValidating,
		History:      []State{StateValidating},
		StartedAt:    time.Now(),
	}
}

// TransitionTo moves the run to state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Run) TransitionTo(state State) error {
	if !canTransition(r.State, state) {
		return ErrInvalidTransition
	}
	r.State = state
	r.History = append(r.History, state)
	return nil
}

// IsTerminal returns true if the run is in a terminal state.
func (r *Run) IsTerminal() bool {
	return r.State == StateSuccess || r.State == StateFailed
}

// Attempts returns how many times state was entered.
func (r *Run) Attempts(state State) int {
	n := 0
	for _, s := range r.History {
		if s == state {
			n++
		}
	}
	return n
}
