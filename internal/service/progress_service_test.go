package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio_backend/internal/model"
	"portfolio_backend/internal/repository"
	"portfolio_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProgressService(t *testing.T) (*ProgressService, *repository.MemoryEvidenceRepository) {
	t.Helper()
	repo := repository.NewMemoryEvidenceRepository()
	svc := NewProgressService(testCatalog(t), repo)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func fullEWA() []model.Evidence {
	return []model.Evidence{
		approvedEvidence(7, "E1", "E1.1"),
		approvedEvidence(7, "E1", "E1.2"),
		approvedEvidence(7, "E2", "E2.1"),
		approvedEvidence(7, "E2", "E2.2"),
	}
}

func TestComputeProgress_AllApproved(t *testing.T) {
	svc, _ := newTestProgressService(t)

	p := svc.ComputeProgress(model.EWA, fullEWA())
	assert.Equal(t, model.QualificationProgress{Name: model.EWA, CompletedUnits: 2, TotalUnits: 2, Progress: 100}, p)
}

func TestComputeProgress_OnePending(t *testing.T) {
	svc, _ := newTestProgressService(t)

	ev := fullEWA()
	ev[3] = withStatus(ev[3], model.EvidencePending)

	p := svc.ComputeProgress(model.EWA, ev)
	assert.Equal(t, 1, p.CompletedUnits)
	assert.Equal(t, 2, p.TotalUnits)
	assert.Equal(t, 50.0, p.Progress)
}

func TestComputeProgress_NoEvidence(t *testing.T) {
	svc, _ := newTestProgressService(t)

	p := svc.ComputeProgress(model.NVQ, nil)
	assert.Equal(t, 0, p.CompletedUnits)
	assert.Equal(t, 2, p.TotalUnits)
	assert.Equal(t, 0.0, p.Progress)
}

func TestComputeProgress_UnknownQualification(t *testing.T) {
	svc, _ := newTestProgressService(t)

	p := svc.ComputeProgress(model.Qualification("XYZ"), fullEWA())
	assert.Equal(t, 0, p.TotalUnits)
	assert.Equal(t, 0.0, p.Progress)
}

func TestCompilePortfolio_Success(t *testing.T) {
	svc, _ := newTestProgressService(t)

	ev := append(fullEWA(), approvedEvidence(7, "E1", "E1.1"))
	result, err := svc.CompilePortfolio(model.EWA, svc.Catalog.GetUnitsByQualification(model.EWA), ev)
	require.NoError(t, err)

	assert.Equal(t, model.EWA, result.Qualification)
	assert.Equal(t, 2, result.UnitCount)
	assert.Equal(t, 4, result.CriterionCount)
	assert.Equal(t, 5, result.ApprovedEvidence)
	assert.Equal(t, "EWA portfolio compiled: 2 units, 4 criteria, 5 approved evidence items", result.Summary)
	assert.Equal(t, svc.now(), result.CompiledAt)
}

func TestCompilePortfolio_NamesMissingUnit(t *testing.T) {
	svc, _ := newTestProgressService(t)

	ev := fullEWA()
	ev[3] = withStatus(ev[3], model.EvidencePending)

	result, err := svc.CompilePortfolio(model.EWA, svc.Catalog.GetUnitsByQualification(model.EWA), ev)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrIncompletePortfolio))
	assert.Contains(t, err.Error(), "E2")
	assert.Contains(t, err.Error(), "E2.2")

	var incomplete *util.IncompletePortfolioError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []model.PortfolioGap{{UnitID: "E2", UnitTitle: "Wiring systems", CriterionID: "E2.2"}}, incomplete.Gaps)
	assert.Equal(t, []string{"E2"}, incomplete.MissingUnits())
}

func TestCompilePortfolio_ListsAllGapsInCatalogOrder(t *testing.T) {
	svc, _ := newTestProgressService(t)

	ev := []model.Evidence{approvedEvidence(7, "E1", "E1.2")}
	_, err := svc.CompilePortfolio(model.EWA, svc.Catalog.GetUnitsByQualification(model.EWA), ev)

	var incomplete *util.IncompletePortfolioError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []model.PortfolioGap{
		{UnitID: "E1", UnitTitle: "Safe isolation", CriterionID: "E1.1"},
		{UnitID: "E2", UnitTitle: "Wiring systems", CriterionID: "E2.1"},
		{UnitID: "E2", UnitTitle: "Wiring systems", CriterionID: "E2.2"},
	}, incomplete.Gaps)
	assert.Contains(t, err.Error(), "and 2 more")

	_, again := svc.CompilePortfolio(model.EWA, svc.Catalog.GetUnitsByQualification(model.EWA), ev)
	assert.Equal(t, err.Error(), again.Error())
}

func TestCompilePortfolio_NoUnits(t *testing.T) {
	catalog, err := NewCatalogService(nil)
	require.NoError(t, err)
	svc := NewProgressService(catalog, repository.NewMemoryEvidenceRepository())

	p := svc.ComputeProgress(model.EWA, nil)
	assert.Equal(t, model.QualificationProgress{Name: model.EWA, CompletedUnits: 0, TotalUnits: 0, Progress: 0}, p)

	result, err := svc.CompilePortfolio(model.EWA, catalog.GetUnitsByQualification(model.EWA), nil)
	require.NoError(t, err)
	assert.Equal(t, p.CompletedUnits == p.TotalUnits, err == nil)
	assert.Equal(t, 0, result.UnitCount)
	assert.Equal(t, 0, result.CriterionCount)
	assert.Equal(t, 0, result.ApprovedEvidence)
	assert.Equal(t, "EWA portfolio compiled: 0 units, 0 criteria, 0 approved evidence items", result.Summary)
}

// Compilation succeeds exactly when progress reports every unit complete.
func TestCompilePortfolio_AgreesWithProgress(t *testing.T) {
	svc, _ := newTestProgressService(t)
	units := svc.Catalog.GetUnitsByQualification(model.EWA)
	base := fullEWA()

	for mask := 0; mask < 1<<len(base); mask++ {
		var ev []model.Evidence
		for i, e := range base {
			if mask&(1<<i) != 0 {
				ev = append(ev, e)
			} else {
				ev = append(ev, withStatus(e, model.EvidenceRejected))
			}
		}

		p := svc.ComputeProgress(model.EWA, ev)
		_, err := svc.CompilePortfolio(model.EWA, units, ev)
		assert.Equal(t, p.CompletedUnits == p.TotalUnits, err == nil, "mask %04b", mask)
	}
}

func TestUnitCompletions(t *testing.T) {
	svc, _ := newTestProgressService(t)

	ev := []model.Evidence{
		approvedEvidence(7, "E1", "E1.1"),
		approvedEvidence(7, "E1", "E1.2"),
		approvedEvidence(7, "E1", "E1.2"),
		withStatus(approvedEvidence(7, "E2", "E2.1"), model.EvidencePending),
	}

	completions := svc.UnitCompletions(model.EWA, ev)
	require.Len(t, completions, 2)

	assert.True(t, completions[0].Completed)
	assert.Equal(t, 2, completions[0].Criteria[1].ApprovedCount)

	assert.False(t, completions[1].Completed)
	assert.Equal(t, "E2.1", completions[1].Criteria[0].CriterionID)
	assert.Equal(t, 1, completions[1].Criteria[0].EvidenceCount)
	assert.Equal(t, 0, completions[1].Criteria[0].ApprovedCount)
	assert.False(t, completions[1].Criteria[0].Satisfied)
}

func TestPendingEvidence(t *testing.T) {
	ev := []model.Evidence{
		withStatus(approvedEvidence(7, "E1", "E1.1"), model.EvidencePending),
		approvedEvidence(7, "E1", "E1.2"),
		withStatus(approvedEvidence(7, "E2", "E2.1"), model.EvidencePending),
	}

	pending := PendingEvidence(ev)
	require.Len(t, pending, 2)
	assert.Equal(t, ev[0].ID, pending[0].ID)
	assert.Equal(t, ev[2].ID, pending[1].ID)

	assert.Empty(t, PendingEvidence(nil))
}

func TestCompileForCandidate_UsesOnlyThatCandidate(t *testing.T) {
	svc, repo := newTestProgressService(t)
	ctx := context.Background()

	for _, e := range fullEWA() {
		e := e
		require.NoError(t, repo.Create(ctx, &e))
	}
	foreign := approvedEvidence(8, "E1", "E1.1")
	require.NoError(t, repo.Create(ctx, &foreign))

	result, err := svc.CompileForCandidate(ctx, model.EWA, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, result.ApprovedEvidence)

	_, err = svc.CompileForCandidate(ctx, model.EWA, 8)
	assert.True(t, errors.Is(err, util.ErrIncompletePortfolio))

	stats, err := svc.StatsForCandidate(ctx, model.EWA, 8)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.CompletedUnits)

	progress, units, err := svc.ProgressForCandidate(ctx, model.EWA, 7)
	require.NoError(t, err)
	assert.Equal(t, 100.0, progress.Progress)
	assert.Len(t, units, 2)
}
