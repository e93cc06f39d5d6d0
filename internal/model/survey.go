package model

// Major is a study program listed under an interest cluster
type Major struct {
	ID      string      `json:"id" yaml:"id"`
	Name    string      `json:"name" yaml:"name"`
	Profile []Dimension `json:"profile" yaml:"profile"` // Holland letters, strongest first
	Summary string      `json:"summary,omitempty" yaml:"summary"`
}

// Cluster is an interest cluster chosen before the instrument
type Cluster struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Majors      []Major `json:"majors" yaml:"majors"`
}

// MajorMatch is a recommended major with its fit against a RIASEC profile
type MajorMatch struct {
	MajorID   string  `json:"majorId" bson:"majorId"`
	Name      string  `json:"name" bson:"name"`
	ClusterID string  `json:"clusterId" bson:"clusterId"`
	Fit       float64 `json:"fit" bson:"fit"` // 0-1
}
