package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio_backend/internal/model"
	"portfolio_backend/internal/util"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	lockVersionSQL    = "SELECT .*version.* FROM `evidence` WHERE id = \\?.* FOR UPDATE"
	conditionalUpdate = "UPDATE `evidence` SET .*`version`=\\?.* WHERE id = \\? AND version = \\?"
	countEvidenceSQL  = "SELECT count\\(\\*\\) FROM `evidence` WHERE id = \\?"
)

func newMockEvidenceRepository(t *testing.T) (*EvidenceRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	return NewEvidenceRepository(db), mock
}

func assessedEvidence() *model.Evidence {
	feedback := "Meets the criterion"
	return &model.Evidence{
		UUIDBase:         model.UUIDBase{ID: "ev-1"},
		Title:            "Isolation record",
		Status:           model.EvidenceApproved,
		UploadDate:       time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		AssessorFeedback: &feedback,
		AssessorName:     "Ada",
	}
}

func TestEvidenceRepositoryUpdate_ConditionalSetsNextVersion(t *testing.T) {
	repo, mock := newMockEvidenceRepository(t)
	ev := assessedEvidence()

	mock.ExpectBegin()
	mock.ExpectExec(conditionalUpdate).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), ev, 3))
	assert.Equal(t, 4, ev.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryUpdate_LastWriterLocksRow(t *testing.T) {
	repo, mock := newMockEvidenceRepository(t)
	ev := assessedEvidence()

	mock.ExpectBegin()
	mock.ExpectQuery(lockVersionSQL).WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(6))
	mock.ExpectExec(conditionalUpdate).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), ev, 0))
	assert.Equal(t, 7, ev.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryUpdate_StaleVersionConflicts(t *testing.T) {
	repo, mock := newMockEvidenceRepository(t)
	ev := assessedEvidence()
	ev.Version = 2

	mock.ExpectBegin()
	mock.ExpectExec(conditionalUpdate).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(countEvidenceSQL).WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), ev, 2)
	assert.True(t, errors.Is(err, util.ErrVersionConflict))
	assert.Equal(t, 2, ev.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryUpdate_MissingRecord(t *testing.T) {
	t.Run("conditional", func(t *testing.T) {
		repo, mock := newMockEvidenceRepository(t)

		mock.ExpectBegin()
		mock.ExpectExec(conditionalUpdate).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(countEvidenceSQL).WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
		mock.ExpectRollback()

		err := repo.Update(context.Background(), assessedEvidence(), 1)
		assert.True(t, errors.Is(err, util.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("last writer", func(t *testing.T) {
		repo, mock := newMockEvidenceRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockVersionSQL).WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectRollback()

		err := repo.Update(context.Background(), assessedEvidence(), 0)
		assert.True(t, errors.Is(err, util.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEvidenceRepositoryUpdate_DatabaseError(t *testing.T) {
	repo, mock := newMockEvidenceRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(conditionalUpdate).WillReturnError(errors.New("Error 1205: Lock wait timeout exceeded"))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), assessedEvidence(), 5)
	assert.True(t, errors.Is(err, util.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}
