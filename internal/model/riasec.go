package model

import "fmt"

// Dimension is one of the six Holland interest types
type Dimension string

const (
	Realistic     Dimension = "R"
	Investigative Dimension = "I"
	Artistic      Dimension = "A"
	Social        Dimension = "S"
	Enterprising  Dimension = "E"
	Conventional  Dimension = "C"
)

// Dimensions lists the RIASEC dimensions in canonical order, also used for tie breaks
var Dimensions = [6]Dimension{Realistic, Investigative, Artistic, Social, Enterprising, Conventional}

// ParseDimension validates a single-letter dimension
func ParseDimension(s string) (Dimension, error) {
	for _, d := range Dimensions {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown RIASEC dimension %q", s)
}

// RIASECScores is a six-dimension score vector
type RIASECScores struct {
	R float64 `json:"R" bson:"R" yaml:"R"`
	I float64 `json:"I" bson:"I" yaml:"I"`
	A float64 `json:"A" bson:"A" yaml:"A"`
	S float64 `json:"S" bson:"S" yaml:"S"`
	E float64 `json:"E" bson:"E" yaml:"E"`
	C float64 `json:"C" bson:"C" yaml:"C"`
}

// Get returns the score of d
func (s RIASECScores) Get(d Dimension) float64 {
	switch d {
	case Realistic:
		return s.R
	case Investigative:
		return s.I
	case Artistic:
		return s.A
	case Social:
		return s.S
	case Enterprising:
		return s.E
	case Conventional:
		return s.C
	}
	return 0
}

// Set overwrites the score of d
func (s *RIASECScores) Set(d Dimension, v float64) {
	switch d {
	case Realistic:
		s.R = v
	case Investigative:
		s.I = v
	case Artistic:
		s.A = v
	case Social:
		s.S = v
	case Enterprising:
		s.E = v
	case Conventional:
		s.C = v
	}
}

// Add accumulates w into s
func (s *RIASECScores) Add(w RIASECScores) {
	for _, d := range Dimensions {
		s.Set(d, s.Get(d)+w.Get(d))
	}
}

// Max returns the largest dimension score
func (s RIASECScores) Max() float64 {
	max := s.R
	for _, d := range Dimensions[1:] {
		if v := s.Get(d); v > max {
			max = v
		}
	}
	return max
}

// Side is the chosen statement of a forced-choice item
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Valid reports whether s is A or B
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// ItemSide is one statement of a forced-choice pair
type ItemSide struct {
	Text    string       `json:"text" yaml:"text"`
	Weights RIASECScores `json:"-" yaml:"weights"`
}

// PrimaryItem is a forced-choice item of the RIASEC instrument
type PrimaryItem struct {
	ID string   `json:"id" yaml:"id"`
	A  ItemSide `json:"a" yaml:"a"`
	B  ItemSide `json:"b" yaml:"b"`
}

// Weights returns the weight vector of the chosen side
func (p *PrimaryItem) Weights(side Side) RIASECScores {
	switch side {
	case SideA:
		return p.A.Weights
	case SideB:
		return p.B.Weights
	}
	return RIASECScores{}
}
