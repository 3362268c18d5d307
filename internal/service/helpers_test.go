package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"portfolio_backend/internal/config"
	"portfolio_backend/internal/model"
	"portfolio_backend/pkg/events"

	"github.com/stretchr/testify/require"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\n")

func testUnits() []model.Unit {
	return []model.Unit{
		{ID: "E1", Qualification: model.EWA, Title: "Safe isolation", Criteria: []model.Criterion{
			{ID: "E1.1", Text: "Isolate the supply"},
			{ID: "E1.2", Text: "Prove dead"},
		}},
		{ID: "E2", Qualification: model.EWA, Title: "Wiring systems", Criteria: []model.Criterion{
			{ID: "E2.1", Text: "Install conduit"},
			{ID: "E2.2", Text: "Terminate conductors"},
		}},
		{ID: "N1", Qualification: model.NVQ, Title: "Site records", Criteria: []model.Criterion{
			{ID: "N1.1", Text: "Keep records"},
			{ID: "N1.2", Text: "Report defects"},
		}},
		{ID: "N2", Qualification: model.NVQ, Title: "Commissioning", Criteria: []model.Criterion{
			{ID: "N2.1", Text: "Commission equipment"},
			{ID: "N2.2", Text: "Hand over"},
		}},
	}
}

func testCatalog(t *testing.T) *CatalogService {
	t.Helper()
	c, err := NewCatalogService(testUnits())
	require.NoError(t, err)
	return c
}

func testConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{
			MaxSizeMB:         5,
			AllowedExtensions: []string{".pdf", ".png", ".jpg", ".mp4"},
		},
		Download: config.DownloadConfig{Extension: ".pdf", Folder: "downloads"},
	}
}

func approvedEvidence(candidateID uint, unitID, criterionID string) model.Evidence {
	return model.Evidence{
		UUIDBase:    model.UUIDBase{ID: model.GenerateUUID()},
		CandidateID: candidateID,
		UnitID:      unitID,
		CriterionID: criterionID,
		Status:      model.EvidenceApproved,
		UploadDate:  time.Now(),
		Version:     1,
	}
}

func withStatus(e model.Evidence, s model.EvidenceStatus) model.Evidence {
	e.Status = s
	return e
}

var (
	candidate = model.Principal{ID: 7, DisplayName: "Casey Candidate", Role: model.Candidate}
	other     = model.Principal{ID: 8, DisplayName: "Other Candidate", Role: model.Candidate}
	assessor  = model.Principal{ID: 20, DisplayName: "Ada Assessor", Role: model.Assessor}
	admin     = model.Principal{ID: 1, DisplayName: "Root", Role: model.Admin}
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.EvidenceEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.EvidenceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
