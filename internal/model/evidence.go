package model

import (
	"time"

	"gorm.io/datatypes"
)

type EvidenceStatus string

const (
	EvidencePending       EvidenceStatus = "Pending"
	EvidenceApproved      EvidenceStatus = "Approved"
	EvidenceRejected      EvidenceStatus = "Rejected"
	EvidenceNeedsRevision EvidenceStatus = "NeedsRevision"
)

func (s EvidenceStatus) IsValid() bool {
	switch s {
	case EvidencePending, EvidenceApproved, EvidenceRejected, EvidenceNeedsRevision:
		return true
	default:
		return false
	}
}

// Evidence is a candidate-submitted artifact addressing one criterion.
// swagger:model Evidence
type Evidence struct {
	UUIDBase
	Title            string         `gorm:"size:255;not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	CandidateID      uint           `gorm:"index;type:bigint unsigned;not null" json:"candidateId"`
	UploadedBy       string         `gorm:"size:100;not null" json:"uploadedBy"`
	UploadDate       time.Time      `gorm:"index;not null" json:"uploadDate"`
	UnitID           string         `gorm:"size:32;index;not null" json:"unitId"`
	CriterionID      string         `gorm:"size:32;index;not null" json:"criterionId"`
	Status           EvidenceStatus `gorm:"type:varchar(20);index;not null;default:'Pending'" json:"status"`
	FileKey          string         `gorm:"size:255" json:"-"`
	FileName         string         `gorm:"size:255" json:"fileName,omitempty"`
	FileURL          string         `gorm:"size:512" json:"fileUrl,omitempty"`
	ContentType      string         `gorm:"size:100" json:"contentType,omitempty"`
	FileSize         int64          `gorm:"default:0" json:"fileSize"`
	MediaInfo        datatypes.JSON `json:"mediaInfo,omitempty"`
	AssessorFeedback *string        `gorm:"type:text" json:"assessorFeedback,omitempty"`
	AssessorID       *uint          `gorm:"type:bigint unsigned" json:"assessorId,omitempty"`
	AssessorName     string         `gorm:"size:100" json:"assessorName,omitempty"`
	AssessmentDate   *time.Time     `json:"assessmentDate,omitempty"`
	// Version increases on every update and backs optimistic concurrency checks.
	Version int `gorm:"not null;default:1" json:"version"`
}

func (Evidence) TableName() string {
	return "evidence"
}

// AssessorFeedback is applied atomically to one evidence record. It is never stored on its own.
type AssessorFeedback struct {
	EvidenceID     string         `json:"evidenceId"`
	AssessorName   string         `json:"assessorName"`
	Feedback       string         `json:"feedback"`
	Status         EvidenceStatus `json:"status"`
	AssessmentDate time.Time      `json:"assessmentDate"`
	// ExpectedVersion, when non-zero, must match the stored version.
	ExpectedVersion int `json:"expectedVersion,omitempty"`
}

// EvidenceFilter narrows repository listings. Zero values match everything.
type EvidenceFilter struct {
	CandidateID uint
	UnitID      string
	Statuses    []EvidenceStatus
}
