package model

import "time"

// RetentionPeriod is how long a result stays retrievable
const RetentionPeriod = 90 * 24 * time.Hour

// DecisionStatus tags how settled a respondent's career choice is
type DecisionStatus string

const (
	DecisionDecided   DecisionStatus = "decided"
	DecisionExploring DecisionStatus = "exploring"
	DecisionUndecided DecisionStatus = "undecided"
)

// Identity is the optional respondent identity carried by a handoff
type Identity struct {
	Name      string `json:"name,omitempty" bson:"name,omitempty"`
	StudentID string `json:"studentId,omitempty" bson:"studentId,omitempty"`
	Email     string `json:"email,omitempty" bson:"email,omitempty"`
}

// Empty reports whether no identity field is set
func (i *Identity) Empty() bool {
	return i == nil || (i.Name == "" && i.StudentID == "" && i.Email == "")
}

// DeviceInfo is fingerprint metadata captured when a session starts
type DeviceInfo struct {
	UserAgent string `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	Language  string `json:"language,omitempty" bson:"language,omitempty"`
	Platform  string `json:"platform,omitempty" bson:"platform,omitempty"`
	IPHash    string `json:"ipHash,omitempty" bson:"ipHash,omitempty"`
}

// ValueScores are the seven work-value means
type ValueScores struct {
	Achievement float64 `json:"achievement" bson:"achievement"`
	Autonomy    float64 `json:"autonomy" bson:"autonomy"`
	Creativity  float64 `json:"creativity" bson:"creativity"`
	Stability   float64 `json:"stability" bson:"stability"`
	Altruism    float64 `json:"altruism" bson:"altruism"`
	Wealth      float64 `json:"wealth" bson:"wealth"`
	Recognition float64 `json:"recognition" bson:"recognition"`
}

// CareerDecision summarises the decision-status block
type CareerDecision struct {
	Status     DecisionStatus `json:"status" bson:"status"`
	Confidence float64        `json:"confidence" bson:"confidence"`
	Factors    []string       `json:"factors,omitempty" bson:"factors,omitempty"`
}

// Preferences are passed through from the preference block
type Preferences struct {
	StudyStyle   string   `json:"studyStyle,omitempty" bson:"studyStyle,omitempty"`
	Environment  string   `json:"environment,omitempty" bson:"environment,omitempty"`
	ChoiceFactor string   `json:"choiceFactor,omitempty" bson:"choiceFactor,omitempty"`
	CareerGoal   string   `json:"careerGoal,omitempty" bson:"careerGoal,omitempty"`
	Details      []string `json:"details,omitempty" bson:"details,omitempty"`
}

// RoleModel describes an admired person, when the respondent has one
type RoleModel struct {
	Description string   `json:"description" bson:"description"`
	Traits      []string `json:"traits,omitempty" bson:"traits,omitempty"`
}

// ResultRecord is a finalized assessment. It is never mutated after creation.
type ResultRecord struct {
	Code                 string                `json:"code" bson:"_id"`
	Identity             *Identity             `json:"identity,omitempty" bson:"identity,omitempty"`
	StudentID            string                `json:"-" bson:"studentId,omitempty"` // indexed copy of Identity.StudentID
	Answers              AnswerSet             `json:"answers" bson:"answers"`
	ValueScores          ValueScores           `json:"valueScores" bson:"valueScores"`
	CareerDecision       CareerDecision        `json:"careerDecision" bson:"careerDecision"`
	SelfEfficacy         map[Dimension]float64 `json:"selfEfficacy" bson:"selfEfficacy"`
	Preferences          Preferences           `json:"preferences" bson:"preferences"`
	RoleModel            *RoleModel            `json:"roleModel,omitempty" bson:"roleModel,omitempty"`
	ValueRanking         map[string]int        `json:"valueRanking,omitempty" bson:"valueRanking,omitempty"`
	RIASEC               *RIASECScores         `json:"riasec,omitempty" bson:"riasec,omitempty"`
	HollandCode          string                `json:"hollandCode,omitempty" bson:"hollandCode,omitempty"`
	Cluster              string                `json:"cluster,omitempty" bson:"cluster,omitempty"`
	Recommendations      []MajorMatch          `json:"recommendations,omitempty" bson:"recommendations,omitempty"`
	SupplementarySkipped bool                  `json:"supplementarySkipped" bson:"supplementarySkipped"`
	Device               DeviceInfo            `json:"device" bson:"device"`
	CreatedAt            time.Time             `json:"createdAt" bson:"createdAt"`
	ExpiresAt            time.Time             `json:"expiresAt" bson:"expiresAt"`
}

// Expired reports whether the record is past its retention window at now
func (r *ResultRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// ResultCreatedEvent is broadcast to dashboard subscribers after a save
type ResultCreatedEvent struct {
	Code                 string         `json:"code"`
	HollandCode          string         `json:"hollandCode,omitempty"`
	Cluster              string         `json:"cluster,omitempty"`
	DecisionStatus       DecisionStatus `json:"decisionStatus,omitempty"`
	SupplementarySkipped bool           `json:"supplementarySkipped"`
	CreatedAt            time.Time      `json:"createdAt"`
}
