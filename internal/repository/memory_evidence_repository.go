package repository

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"portfolio_backend/internal/model"
	"portfolio_backend/internal/util"
)

// MemoryEvidenceRepository satisfies the same contract as EvidenceRepository
// without a database. Stored values are copied in and out.
type MemoryEvidenceRepository struct {
	mu       sync.RWMutex
	evidence map[string]model.Evidence
}

func NewMemoryEvidenceRepository() *MemoryEvidenceRepository {
	return &MemoryEvidenceRepository{evidence: make(map[string]model.Evidence)}
}

func cloneEvidence(e model.Evidence) model.Evidence {
	if e.MediaInfo != nil {
		e.MediaInfo = bytes.Clone(e.MediaInfo)
	}
	return e
}

func (r *MemoryEvidenceRepository) Create(ctx context.Context, evidence *model.Evidence) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if evidence.ID == "" {
		evidence.ID = model.GenerateUUID()
	}
	now := time.Now()
	if evidence.CreatedAt.IsZero() {
		evidence.CreatedAt = now
	}
	if evidence.UpdatedAt.IsZero() {
		evidence.UpdatedAt = now
	}
	if evidence.Version == 0 {
		evidence.Version = 1
	}
	r.evidence[evidence.ID] = cloneEvidence(*evidence)
	return nil
}

func (r *MemoryEvidenceRepository) FindByID(ctx context.Context, id string) (*model.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.evidence[id]
	if !ok {
		return nil, util.ErrEvidenceNotFound
	}
	e = cloneEvidence(e)
	return &e, nil
}

func (r *MemoryEvidenceRepository) List(ctx context.Context, filter model.EvidenceFilter) ([]model.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]model.Evidence, 0, len(r.evidence))
	for _, e := range r.evidence {
		if filter.CandidateID > 0 && e.CandidateID != filter.CandidateID {
			continue
		}
		if filter.UnitID != "" && e.UnitID != filter.UnitID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, e.Status) {
			continue
		}
		list = append(list, cloneEvidence(e))
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].UploadDate.Equal(list[j].UploadDate) {
			return list[i].UploadDate.Before(list[j].UploadDate)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r *MemoryEvidenceRepository) Update(ctx context.Context, evidence *model.Evidence, expectedVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.evidence[evidence.ID]
	if !ok {
		return util.ErrEvidenceNotFound
	}
	if expectedVersion > 0 && stored.Version != expectedVersion {
		return util.ErrVersionConflict
	}

	updated := cloneEvidence(*evidence)
	updated.CreatedAt = stored.CreatedAt
	updated.CandidateID = stored.CandidateID
	updated.UnitID = stored.UnitID
	updated.CriterionID = stored.CriterionID
	updated.UpdatedAt = time.Now()
	updated.Version = stored.Version + 1
	r.evidence[evidence.ID] = updated

	evidence.Version = updated.Version
	evidence.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *MemoryEvidenceRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.evidence[id]; !ok {
		return util.ErrEvidenceNotFound
	}
	delete(r.evidence, id)
	return nil
}

func containsStatus(statuses []model.EvidenceStatus, s model.EvidenceStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
