package util

import (
	"errors"
	"fmt"
	"strings"

	"portfolio_backend/internal/model"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrStorage             = errors.New("storage error")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrIncompletePortfolio = errors.New("incomplete portfolio")
	ErrVersionConflict     = errors.New("version conflict")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrUnauthorized        = errors.New("unauthorized")

	ErrEmailRegistered    = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrFileNotFound       = fmt.Errorf("file %w", ErrNotFound)
	ErrEvidenceNotFound   = fmt.Errorf("evidence %w", ErrNotFound)
)

// IncompletePortfolioError lists every criterion that still lacks approved
// evidence, in catalog order.
type IncompletePortfolioError struct {
	Qualification model.Qualification
	Gaps          []model.PortfolioGap
}

func (e *IncompletePortfolioError) Error() string {
	if len(e.Gaps) == 0 {
		return fmt.Sprintf("%s portfolio incomplete", e.Qualification)
	}
	first := e.Gaps[0]
	var b strings.Builder
	fmt.Fprintf(&b, "%s portfolio incomplete: unit %s (%s) is missing approved evidence for criterion %s",
		e.Qualification, first.UnitID, first.UnitTitle, first.CriterionID)
	if n := len(e.Gaps) - 1; n > 0 {
		fmt.Fprintf(&b, " and %d more", n)
	}
	return b.String()
}

func (e *IncompletePortfolioError) Unwrap() error {
	return ErrIncompletePortfolio
}

// MissingUnits returns the distinct unit ids among the gaps, first-seen order.
func (e *IncompletePortfolioError) MissingUnits() []string {
	seen := make(map[string]bool)
	var units []string
	for _, g := range e.Gaps {
		if !seen[g.UnitID] {
			seen[g.UnitID] = true
			units = append(units, g.UnitID)
		}
	}
	return units
}

// Validationf builds an error that matches ErrValidation.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
