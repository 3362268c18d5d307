package model

import "time"

// QualificationStats is recomputed on every request and never stored.
type QualificationStats struct {
	TotalUnits         int     `json:"totalUnits"`
	CompletedUnits     int     `json:"completedUnits"`
	ProgressPercentage float64 `json:"progressPercentage"`
}

// swagger:model QualificationProgress
type QualificationProgress struct {
	Name           Qualification `json:"name"`
	CompletedUnits int           `json:"completedUnits"`
	TotalUnits     int           `json:"totalUnits"`
	Progress       float64       `json:"progress"`
}

type CriterionCompletion struct {
	CriterionID   string `json:"criterionId"`
	Text          string `json:"text"`
	ApprovedCount int    `json:"approvedCount"`
	EvidenceCount int    `json:"evidenceCount"`
	Satisfied     bool   `json:"satisfied"`
}

type UnitCompletion struct {
	UnitID    string                `json:"unitId"`
	Title     string                `json:"title"`
	Criteria  []CriterionCompletion `json:"criteria"`
	Completed bool                  `json:"completed"`
}

// PortfolioGap is a criterion without approved evidence.
type PortfolioGap struct {
	UnitID      string `json:"unitId"`
	UnitTitle   string `json:"unitTitle"`
	CriterionID string `json:"criterionId"`
}

// swagger:model CompilationResult
type CompilationResult struct {
	Qualification    Qualification `json:"qualification"`
	UnitCount        int           `json:"unitCount"`
	CriterionCount   int           `json:"criterionCount"`
	ApprovedEvidence int           `json:"approvedEvidence"`
	Summary          string        `json:"summary"`
	CompiledAt       time.Time     `json:"compiledAt"`
}
