package model

import (
	"errors"
	"time"
)

// ErrCorruptSnapshot marks a stored snapshot that cannot be decoded
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Phase is the engine's position in the assessment flow
type Phase string

const (
	PhaseIntro             Phase = "intro"
	PhaseInterestSelection Phase = "interest_selection"
	PhaseMajorPreview      Phase = "major_preview"
	PhasePrimaryInstrument Phase = "primary_instrument"
	PhasePrimaryResult     Phase = "primary_result"
	PhaseSupplementary     Phase = "supplementary"
	PhaseComplete          Phase = "complete"
)

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	switch p {
	case PhaseIntro, PhaseInterestSelection, PhaseMajorPreview, PhasePrimaryInstrument,
		PhasePrimaryResult, PhaseSupplementary, PhaseComplete:
		return true
	}
	return false
}

// Snapshot is the resumable serialization of an in-progress session
type Snapshot struct {
	SessionID      string          `json:"sessionId"`
	Answers        AnswerSet       `json:"answers"`
	CurrentIndex   int             `json:"currentIndex"`
	Phase          Phase           `json:"phase"`
	PrimaryIndex   int             `json:"primaryIndex"`
	PrimaryAnswers map[string]Side `json:"primaryAnswers"`
	PrimaryScores  *RIASECScores   `json:"primaryScores"`
	Cluster        string          `json:"cluster,omitempty"`
	Identity       *Identity       `json:"identity,omitempty"`
	Device         DeviceInfo      `json:"device"`
	SavedAt        time.Time       `json:"savedAt"`
}
