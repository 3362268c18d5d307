package service

import (
	_ "embed"
	"fmt"
	"os"

	"portfolio_backend/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Units []model.Unit `yaml:"units"`
}

// CatalogService is the read-only unit/criterion table. It is built once and
// safe for concurrent reads without locking.
type CatalogService struct {
	units    []model.Unit
	byID     map[string]int
	byQual   map[model.Qualification][]int
	criteria map[string]map[string]int
}

// DefaultCatalog loads the embedded catalog.
func DefaultCatalog() (*CatalogService, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a catalog file; an empty path falls back to the embedded one.
func LoadCatalog(path string) (*CatalogService, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*CatalogService, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalogService(f.Units)
}

func NewCatalogService(units []model.Unit) (*CatalogService, error) {
	s := &CatalogService{
		units:    make([]model.Unit, 0, len(units)),
		byID:     make(map[string]int, len(units)),
		byQual:   make(map[model.Qualification][]int),
		criteria: make(map[string]map[string]int, len(units)),
	}

	seenCriteria := make(map[string]string)
	for _, u := range units {
		if u.ID == "" {
			return nil, fmt.Errorf("catalog unit without id")
		}
		if !u.Qualification.IsValid() {
			return nil, fmt.Errorf("unit %s: unknown qualification %q", u.ID, u.Qualification)
		}
		if _, dup := s.byID[u.ID]; dup {
			return nil, fmt.Errorf("duplicate unit id %s", u.ID)
		}

		unit := u
		unit.Criteria = make([]model.Criterion, len(u.Criteria))
		index := make(map[string]int, len(u.Criteria))
		for i, c := range u.Criteria {
			if c.ID == "" {
				return nil, fmt.Errorf("unit %s: criterion without id", u.ID)
			}
			if owner, dup := seenCriteria[c.ID]; dup {
				return nil, fmt.Errorf("criterion %s declared in both %s and %s", c.ID, owner, u.ID)
			}
			seenCriteria[c.ID] = u.ID
			c.UnitID = u.ID
			unit.Criteria[i] = c
			index[c.ID] = i
		}

		s.byID[unit.ID] = len(s.units)
		s.byQual[unit.Qualification] = append(s.byQual[unit.Qualification], len(s.units))
		s.criteria[unit.ID] = index
		s.units = append(s.units, unit)
	}

	return s, nil
}

// GetUnitsByQualification returns units in declaration order. Unknown tags
// yield an empty slice.
func (s *CatalogService) GetUnitsByQualification(q model.Qualification) []model.Unit {
	idx := s.byQual[q]
	units := make([]model.Unit, 0, len(idx))
	for _, i := range idx {
		units = append(units, cloneUnit(s.units[i]))
	}
	return units
}

// GetQualificationStats derives completion for q from the given evidence.
func (s *CatalogService) GetQualificationStats(q model.Qualification, evidence []model.Evidence) model.QualificationStats {
	units := s.GetUnitsByQualification(q)
	approved := approvedIndex(evidence)

	completed := 0
	for _, u := range units {
		if unitComplete(u, approved) {
			completed++
		}
	}

	return model.QualificationStats{
		TotalUnits:         len(units),
		CompletedUnits:     completed,
		ProgressPercentage: percentage(completed, len(units)),
	}
}

func (s *CatalogService) FindUnit(id string) (model.Unit, bool) {
	i, ok := s.byID[id]
	if !ok {
		return model.Unit{}, false
	}
	return cloneUnit(s.units[i]), true
}

func (s *CatalogService) FindCriterion(unitID, criterionID string) (model.Criterion, bool) {
	i, ok := s.byID[unitID]
	if !ok {
		return model.Criterion{}, false
	}
	ci, ok := s.criteria[unitID][criterionID]
	if !ok {
		return model.Criterion{}, false
	}
	return s.units[i].Criteria[ci], true
}

// Qualifications returns the tags that have at least one unit, in the fixed
// order of model.Qualifications.
func (s *CatalogService) Qualifications() []model.Qualification {
	var qs []model.Qualification
	for _, q := range model.Qualifications {
		if len(s.byQual[q]) > 0 {
			qs = append(qs, q)
		}
	}
	return qs
}

func (s *CatalogService) UnitCount(q model.Qualification) int {
	return len(s.byQual[q])
}

func cloneUnit(u model.Unit) model.Unit {
	u.Criteria = append([]model.Criterion(nil), u.Criteria...)
	return u
}

// criterionKey identifies a criterion across units.
type criterionKey struct {
	unitID      string
	criterionID string
}

func approvedIndex(evidence []model.Evidence) map[criterionKey]int {
	approved := make(map[criterionKey]int)
	for _, e := range evidence {
		if e.Status == model.EvidenceApproved {
			approved[criterionKey{e.UnitID, e.CriterionID}]++
		}
	}
	return approved
}

// unitComplete holds iff every criterion has at least one approved record.
// Progress and compilation both go through it.
func unitComplete(u model.Unit, approved map[criterionKey]int) bool {
	for _, c := range u.Criteria {
		if approved[criterionKey{u.ID, c.ID}] == 0 {
			return false
		}
	}
	return true
}

func percentage(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(completed) / float64(total)
}
