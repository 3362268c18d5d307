package model

import "strings"

type Qualification string

const (
	EWA Qualification = "EWA"
	NVQ Qualification = "NVQ"
)

// Qualifications lists every recognised qualification tag.
var Qualifications = []Qualification{EWA, NVQ}

func (q Qualification) IsValid() bool {
	switch q {
	case EWA, NVQ:
		return true
	default:
		return false
	}
}

// ParseQualification accepts tags case-insensitively ("ewa" -> EWA).
func ParseQualification(s string) (Qualification, bool) {
	q := Qualification(strings.ToUpper(strings.TrimSpace(s)))
	return q, q.IsValid()
}

// Criterion is one assessable point within a unit.
// swagger:model Criterion
type Criterion struct {
	ID     string `json:"id" yaml:"id"`
	UnitID string `json:"unitId" yaml:"-"`
	Text   string `json:"text" yaml:"text"`
}

// Unit is an assessable competency unit. Units are loaded once and never mutated.
// swagger:model Unit
type Unit struct {
	ID            string        `json:"id" yaml:"id"`
	Qualification Qualification `json:"qualification" yaml:"qualification"`
	Title         string        `json:"title" yaml:"title"`
	Criteria      []Criterion   `json:"criteria" yaml:"criteria"`
}
