package survey

import (
	"majorcompass/internal/model"
	"majorcompass/internal/scoring"
)

// ItemView presents the current forced-choice item
type ItemView struct {
	ID     string     `json:"id"`
	Index  int        `json:"index"`
	Total  int        `json:"total"`
	A      string     `json:"a"`
	B      string     `json:"b"`
	Chosen model.Side `json:"chosen,omitempty"`
}

// QuestionView presents the current supplementary question
type QuestionView struct {
	model.QuestionDefinition
	Index        int                `json:"index"`
	Total        int                `json:"total"`
	Answer       *model.AnswerValue `json:"answer,omitempty"`
	AutoAdvances bool               `json:"autoAdvances"`
	CanGoNext    bool               `json:"canGoNext"`
	CanGoBack    bool               `json:"canGoBack"`
	IsLast       bool               `json:"isLast"`
}

// PrimaryResultView presents the RIASEC outcome of the instrument
type PrimaryResultView struct {
	Scores      model.RIASECScores `json:"scores"`
	Normalized  model.RIASECScores `json:"normalized"`
	HollandCode string             `json:"hollandCode"`
}

// View is what a presentation layer needs to render the session
type View struct {
	SessionID     string              `json:"sessionId"`
	Phase         model.Phase         `json:"phase"`
	Ready         bool                `json:"ready"`
	Identity      *model.Identity     `json:"identity,omitempty"`
	Cluster       *model.Cluster      `json:"cluster,omitempty"`
	Item          *ItemView           `json:"item,omitempty"`
	Question      *QuestionView       `json:"question,omitempty"`
	PrimaryResult *PrimaryResultView  `json:"primaryResult,omitempty"`
	Result        *model.ResultRecord `json:"result,omitempty"`
	LastError     string              `json:"lastError,omitempty"`
}

// View builds the presentation model of the current state
func (e *Engine) View() *View {
	v := &View{
		SessionID: e.id,
		Phase:     e.phase,
		Ready:     e.Ready(),
		Identity:  e.identity,
		LastError: e.lastError,
	}

	if c, ok := e.cat.Cluster(e.cluster); ok {
		v.Cluster = c
	}

	if item := e.CurrentItem(); item != nil {
		v.Item = &ItemView{
			ID:     item.ID,
			Index:  e.primaryIndex,
			Total:  len(e.cat.Items),
			A:      item.A.Text,
			B:      item.B.Text,
			Chosen: e.primaryAnswers[item.ID],
		}
	}

	if q := e.CurrentQuestion(); q != nil {
		total := len(e.Active())
		qv := &QuestionView{
			QuestionDefinition: *q,
			Index:              e.currentIndex,
			Total:              total,
			AutoAdvances:       q.AutoAdvances(),
			CanGoNext:          e.CanGoNext(),
			CanGoBack:          e.currentIndex > 0,
			IsLast:             e.currentIndex == total-1,
		}
		if a, ok := e.answers[q.ID]; ok {
			qv.Answer = &a
		}
		v.Question = qv
	}

	if e.primaryScores != nil && (e.phase == model.PhasePrimaryResult || e.phase == model.PhaseSupplementary) {
		v.PrimaryResult = &PrimaryResultView{
			Scores:      *e.primaryScores,
			Normalized:  scoring.Normalize(*e.primaryScores),
			HollandCode: scoring.HollandCode(*e.primaryScores),
		}
	}

	if e.phase == model.PhaseComplete {
		v.Result = e.result
	}
	return v
}
