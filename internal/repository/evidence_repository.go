package repository

import (
	"context"
	"errors"
	"fmt"

	"portfolio_backend/internal/model"
	"portfolio_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EvidenceRepository struct {
	DB *gorm.DB
}

func NewEvidenceRepository(db *gorm.DB) *EvidenceRepository {
	return &EvidenceRepository{DB: db}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", util.ErrStorage, op, err)
}

func (r *EvidenceRepository) Create(ctx context.Context, evidence *model.Evidence) error {
	if err := r.DB.WithContext(ctx).Create(evidence).Error; err != nil {
		return storageErr("create evidence", err)
	}
	return nil
}

func (r *EvidenceRepository) FindByID(ctx context.Context, id string) (*model.Evidence, error) {
	var evidence model.Evidence
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&evidence).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrEvidenceNotFound
	}
	if err != nil {
		return nil, storageErr("find evidence", err)
	}
	return &evidence, nil
}

func (r *EvidenceRepository) List(ctx context.Context, filter model.EvidenceFilter) ([]model.Evidence, error) {
	query := r.DB.WithContext(ctx).Model(&model.Evidence{})
	if filter.CandidateID > 0 {
		query = query.Where("candidate_id = ?", filter.CandidateID)
	}
	if filter.UnitID != "" {
		query = query.Where("unit_id = ?", filter.UnitID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var list []model.Evidence
	if err := query.Order("upload_date asc, id asc").Find(&list).Error; err != nil {
		return nil, storageErr("list evidence", err)
	}
	return list, nil
}

// Update saves evidence and bumps its version in one transaction. A non-zero
// expectedVersion makes the write conditional on the stored version; zero
// locks the row and overwrites whatever version it holds.
func (r *EvidenceRepository) Update(ctx context.Context, evidence *model.Evidence, expectedVersion int) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current := expectedVersion
		if current == 0 {
			var stored model.Evidence
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("version").Where("id = ?", evidence.ID).First(&stored).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrEvidenceNotFound
			}
			if err != nil {
				return storageErr("lock evidence", err)
			}
			current = stored.Version
		}

		result := tx.Model(&model.Evidence{}).
			Where("id = ? AND version = ?", evidence.ID, current).
			Updates(map[string]interface{}{
				"title":             evidence.Title,
				"description":       evidence.Description,
				"status":            evidence.Status,
				"file_key":          evidence.FileKey,
				"file_name":         evidence.FileName,
				"file_url":          evidence.FileURL,
				"content_type":      evidence.ContentType,
				"file_size":         evidence.FileSize,
				"media_info":        evidence.MediaInfo,
				"upload_date":       evidence.UploadDate,
				"assessor_feedback": evidence.AssessorFeedback,
				"assessor_id":       evidence.AssessorID,
				"assessor_name":     evidence.AssessorName,
				"assessment_date":   evidence.AssessmentDate,
				"version":           current + 1,
			})
		if result.Error != nil {
			return storageErr("update evidence", result.Error)
		}

		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.Evidence{}).Where("id = ?", evidence.ID).Count(&count).Error; err != nil {
				return storageErr("find evidence", err)
			}
			if count == 0 {
				return util.ErrEvidenceNotFound
			}
			return util.ErrVersionConflict
		}

		evidence.Version = current + 1
		return nil
	})
	if err != nil && !errors.Is(err, util.ErrStorage) &&
		!errors.Is(err, util.ErrEvidenceNotFound) && !errors.Is(err, util.ErrVersionConflict) {
		return storageErr("commit evidence update", err)
	}
	return err
}

func (r *EvidenceRepository) Delete(ctx context.Context, id string) error {
	result := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&model.Evidence{})
	if result.Error != nil {
		return storageErr("delete evidence", result.Error)
	}
	if result.RowsAffected == 0 {
		return util.ErrEvidenceNotFound
	}
	return nil
}
