package service

import (
	"context"
	"fmt"
	"time"

	"portfolio_backend/internal/model"
	"portfolio_backend/internal/util"
	"portfolio_backend/pkg/logger"
	"portfolio_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// EvidenceLister is the read side the progress engine needs.
type EvidenceLister interface {
	List(ctx context.Context, filter model.EvidenceFilter) ([]model.Evidence, error)
}

// ProgressService derives progress and compiled portfolios from the catalog
// and a candidate's evidence. Nothing it computes is stored.
type ProgressService struct {
	Catalog  *CatalogService
	Evidence EvidenceLister
	now      func() time.Time
}

func NewProgressService(catalog *CatalogService, evidence EvidenceLister) *ProgressService {
	return &ProgressService{Catalog: catalog, Evidence: evidence, now: time.Now}
}

func (s *ProgressService) ComputeProgress(q model.Qualification, evidence []model.Evidence) model.QualificationProgress {
	stats := s.Catalog.GetQualificationStats(q, evidence)
	return model.QualificationProgress{
		Name:           q,
		CompletedUnits: stats.CompletedUnits,
		TotalUnits:     stats.TotalUnits,
		Progress:       stats.ProgressPercentage,
	}
}

func (s *ProgressService) UnitCompletions(q model.Qualification, evidence []model.Evidence) []model.UnitCompletion {
	units := s.Catalog.GetUnitsByQualification(q)
	approved := approvedIndex(evidence)

	submitted := make(map[criterionKey]int)
	for _, e := range evidence {
		submitted[criterionKey{e.UnitID, e.CriterionID}]++
	}

	completions := make([]model.UnitCompletion, 0, len(units))
	for _, u := range units {
		uc := model.UnitCompletion{
			UnitID:    u.ID,
			Title:     u.Title,
			Criteria:  make([]model.CriterionCompletion, 0, len(u.Criteria)),
			Completed: unitComplete(u, approved),
		}
		for _, c := range u.Criteria {
			k := criterionKey{u.ID, c.ID}
			uc.Criteria = append(uc.Criteria, model.CriterionCompletion{
				CriterionID:   c.ID,
				Text:          c.Text,
				ApprovedCount: approved[k],
				EvidenceCount: submitted[k],
				Satisfied:     approved[k] > 0,
			})
		}
		completions = append(completions, uc)
	}
	return completions
}

// CompilePortfolio succeeds only when every criterion of every unit has
// approved evidence. Otherwise it returns *util.IncompletePortfolioError with
// all gaps in catalog order. A qualification without units has nothing
// outstanding and compiles with zero counts, matching its 0/0 progress.
func (s *ProgressService) CompilePortfolio(q model.Qualification, units []model.Unit, evidence []model.Evidence) (*model.CompilationResult, error) {
	approved := approvedIndex(evidence)

	var gaps []model.PortfolioGap
	criteria, approvedItems := 0, 0
	for _, u := range units {
		criteria += len(u.Criteria)
		if unitComplete(u, approved) {
			for _, c := range u.Criteria {
				approvedItems += approved[criterionKey{u.ID, c.ID}]
			}
			continue
		}
		for _, c := range u.Criteria {
			if approved[criterionKey{u.ID, c.ID}] == 0 {
				gaps = append(gaps, model.PortfolioGap{UnitID: u.ID, UnitTitle: u.Title, CriterionID: c.ID})
			}
		}
	}

	if len(gaps) > 0 {
		monitoring.PortfolioCompilations.WithLabelValues(string(q), "incomplete").Inc()
		return nil, &util.IncompletePortfolioError{Qualification: q, Gaps: gaps}
	}

	monitoring.PortfolioCompilations.WithLabelValues(string(q), "ok").Inc()
	return &model.CompilationResult{
		Qualification:    q,
		UnitCount:        len(units),
		CriterionCount:   criteria,
		ApprovedEvidence: approvedItems,
		Summary: fmt.Sprintf("%s portfolio compiled: %d units, %d criteria, %d approved evidence items",
			q, len(units), criteria, approvedItems),
		CompiledAt: s.now(),
	}, nil
}

// PendingEvidence keeps the items still awaiting assessment, in input order.
func PendingEvidence(evidence []model.Evidence) []model.Evidence {
	pending := make([]model.Evidence, 0)
	for _, e := range evidence {
		if e.Status == model.EvidencePending {
			pending = append(pending, e)
		}
	}
	return pending
}

func (s *ProgressService) candidateEvidence(ctx context.Context, candidateID uint) ([]model.Evidence, error) {
	return s.Evidence.List(ctx, model.EvidenceFilter{CandidateID: candidateID})
}

func (s *ProgressService) StatsForCandidate(ctx context.Context, q model.Qualification, candidateID uint) (model.QualificationStats, error) {
	evidence, err := s.candidateEvidence(ctx, candidateID)
	if err != nil {
		return model.QualificationStats{}, err
	}
	return s.Catalog.GetQualificationStats(q, evidence), nil
}

func (s *ProgressService) ProgressForCandidate(ctx context.Context, q model.Qualification, candidateID uint) (model.QualificationProgress, []model.UnitCompletion, error) {
	evidence, err := s.candidateEvidence(ctx, candidateID)
	if err != nil {
		return model.QualificationProgress{}, nil, err
	}
	return s.ComputeProgress(q, evidence), s.UnitCompletions(q, evidence), nil
}

func (s *ProgressService) CompileForCandidate(ctx context.Context, q model.Qualification, candidateID uint) (*model.CompilationResult, error) {
	evidence, err := s.candidateEvidence(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	result, err := s.CompilePortfolio(q, s.Catalog.GetUnitsByQualification(q), evidence)
	if err != nil {
		logger.Log.Info("Portfolio compilation refused",
			zap.String("qualification", string(q)),
			zap.Uint("candidate_id", candidateID),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Log.Info("Portfolio compiled",
		zap.String("qualification", string(q)),
		zap.Uint("candidate_id", candidateID),
		zap.Int("approved_evidence", result.ApprovedEvidence),
	)
	return result, nil
}
