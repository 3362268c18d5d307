package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const (
	EvidenceUploaded    = "evidence.uploaded"
	EvidenceResubmitted = "evidence.resubmitted"
	EvidenceAssessed    = "evidence.assessed"
	EvidenceDeleted     = "evidence.deleted"
)

// EvidenceEvent describes one evidence lifecycle change.
type EvidenceEvent struct {
	Type        string    `json:"type"`
	EvidenceID  string    `json:"evidenceId"`
	CandidateID uint      `json:"candidateId"`
	UnitID      string    `json:"unitId"`
	CriterionID string    `json:"criterionId"`
	FromStatus  string    `json:"fromStatus,omitempty"`
	Status      string    `json:"status,omitempty"`
	ActorID     uint      `json:"actorId"`
	OccurredAt  time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event EvidenceEvent) error
	Close() error
}

func encode(event EvidenceEvent) ([]byte, error) {
	return json.Marshal(event)
}

// LogPublisher writes events to the application log instead of a broker.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, event EvidenceEvent) error {
	p.log.Info("evidence event",
		zap.String("type", event.Type),
		zap.String("evidence_id", event.EvidenceID),
		zap.Uint("candidate_id", event.CandidateID),
		zap.String("status", event.Status),
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
