package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"portfolio_backend/internal/config"
	"portfolio_backend/internal/model"
	"portfolio_backend/internal/util"
	"portfolio_backend/pkg/events"
	"portfolio_backend/pkg/logger"
	"portfolio_backend/pkg/monitoring"
	"portfolio_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EvidenceRepository persists evidence metadata. Update with a non-zero
// expectedVersion fails with util.ErrVersionConflict when the stored version differs.
type EvidenceRepository interface {
	Create(ctx context.Context, evidence *model.Evidence) error
	FindByID(ctx context.Context, id string) (*model.Evidence, error)
	List(ctx context.Context, filter model.EvidenceFilter) ([]model.Evidence, error)
	Update(ctx context.Context, evidence *model.Evidence, expectedVersion int) error
	Delete(ctx context.Context, id string) error
}

type UploadEvidenceInput struct {
	Title       string
	Description string
	UnitID      string
	CriterionID string
	FileName    string
	Size        int64
	Reader      io.Reader
}

type ResubmitEvidenceInput struct {
	FileName string
	Size     int64
	Reader   io.Reader
}

type EvidenceService struct {
	Repo      EvidenceRepository
	Storage   StorageProvider
	Catalog   *CatalogService
	Publisher events.Publisher
	Cfg       *config.Config
	now       func() time.Time
}

func NewEvidenceService(repo EvidenceRepository, storage StorageProvider, catalog *CatalogService, publisher events.Publisher, cfg *config.Config) *EvidenceService {
	return &EvidenceService{
		Repo:      repo,
		Storage:   storage,
		Catalog:   catalog,
		Publisher: publisher,
		Cfg:       cfg,
		now:       time.Now,
	}
}

// CheckTransition enforces the status machine when strict is set. Without it
// every transition is allowed.
func CheckTransition(from, to model.EvidenceStatus, strict bool) error {
	if !to.IsValid() {
		return util.Validationf("unknown evidence status %q", to)
	}
	if !strict {
		return nil
	}
	switch {
	case from == model.EvidencePending && to != model.EvidencePending:
		return nil
	case from == model.EvidenceNeedsRevision && to == model.EvidencePending:
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", util.ErrInvalidTransition, from, to)
}

// ResolveCandidate picks whose evidence a principal is asking about. Zero means
// the caller's own; other candidates are visible to reviewers only.
func ResolveCandidate(p model.Principal, requested uint) (uint, error) {
	if requested == 0 || requested == p.ID {
		return p.ID, nil
	}
	if !p.CanReview() {
		return 0, util.ErrPermissionDenied
	}
	return requested, nil
}

// WrapStorageError tags backend failures with util.ErrStorage. Not-found
// errors pass through unchanged.
func WrapStorageError(err error) error {
	if errors.Is(err, util.ErrNotFound) || errors.Is(err, util.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", util.ErrStorage, err)
}

func (s *EvidenceService) ListEvidence(ctx context.Context, candidateID uint) ([]model.Evidence, error) {
	return s.Repo.List(ctx, model.EvidenceFilter{CandidateID: candidateID})
}

// ListPending is the assessor worklist across all candidates.
func (s *EvidenceService) ListPending(ctx context.Context) ([]model.Evidence, error) {
	return s.Repo.List(ctx, model.EvidenceFilter{Statuses: []model.EvidenceStatus{model.EvidencePending}})
}

func (s *EvidenceService) GetEvidence(ctx context.Context, p model.Principal, id string) (*model.Evidence, error) {
	ev, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.CandidateID != p.ID && !p.CanReview() {
		return nil, util.ErrPermissionDenied
	}
	return ev, nil
}

// OpenEvidenceFile returns the stored bytes of an evidence item. The caller closes the reader.
func (s *EvidenceService) OpenEvidenceFile(ctx context.Context, p model.Principal, id string) (io.ReadCloser, *model.Evidence, error) {
	ev, err := s.GetEvidence(ctx, p, id)
	if err != nil {
		return nil, nil, err
	}

	ctx, span := tracing.StartStorageSpan(ctx, "open", ev.FileKey)
	defer span.End()
	span.SetAttributes(attribute.String("evidence.id", id))

	rc, err := s.Storage.Open(ctx, ev.FileKey)
	if err != nil {
		if !errors.Is(err, util.ErrNotFound) {
			tracing.Fail(span, err)
		}
		return nil, nil, WrapStorageError(err)
	}
	return rc, ev, nil
}

type preparedFile struct {
	reader      io.Reader
	size        int64
	contentType string
	ext         string
	mediaInfo   []byte
	cleanup     func()
}

// prepareFile checks name, size and sniffed type, and probes video files.
func (s *EvidenceService) prepareFile(fileName string, size int64, reader io.Reader) (*preparedFile, error) {
	if reader == nil || strings.TrimSpace(fileName) == "" {
		return nil, util.Validationf("file is required")
	}
	if !util.ExtensionAllowed(fileName, s.Cfg.Upload.AllowedExtensions) {
		return nil, util.Validationf("file type %s is not allowed", util.FileExt(fileName))
	}
	if size <= 0 {
		return nil, util.Validationf("file is empty")
	}
	if limit := s.Cfg.MaxUploadBytes(); limit > 0 && size > limit {
		return nil, util.Validationf("file exceeds %d MB", s.Cfg.Upload.MaxSizeMB)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	contentType, err := util.ValidateMimeType(bytes.NewReader(head), util.AllowedEvidenceMimeTypes)
	if err != nil {
		return nil, util.Validationf("%s", err.Error())
	}

	pf := &preparedFile{
		reader:      io.MultiReader(bytes.NewReader(head), reader),
		size:        size,
		contentType: contentType,
		ext:         util.FileExt(fileName),
		cleanup:     func() {},
	}

	if util.IsVideo(contentType) {
		if err := s.probeVideo(pf); err != nil {
			return nil, err
		}
	}
	return pf, nil
}

// probeVideo spools the upload to disk so ffprobe can read it. A failed probe
// only loses the media info.
func (s *EvidenceService) probeVideo(pf *preparedFile) error {
	tmp, err := os.CreateTemp("", "evidence-*"+pf.ext)
	if err != nil {
		return fmt.Errorf("spool video: %w", err)
	}
	pf.cleanup = func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	size, err := io.Copy(tmp, pf.reader)
	if err != nil {
		pf.cleanup()
		return fmt.Errorf("spool video: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		pf.cleanup()
		return fmt.Errorf("rewind spooled video: %w", err)
	}
	pf.reader = tmp
	pf.size = size

	info, err := util.GetVideoInfo(tmp.Name())
	if err != nil {
		logger.Log.Warn("Video probe failed", zap.Error(err))
		return nil
	}
	if data, err := json.Marshal(info); err == nil {
		pf.mediaInfo = data
	}
	return nil
}

func (s *EvidenceService) store(ctx context.Context, key string, pf *preparedFile) (string, error) {
	ctx, span := tracing.StartStorageSpan(ctx, "upload", key)
	defer span.End()
	span.SetAttributes(attribute.Int64("storage.size", pf.size))

	url, err := s.Storage.Upload(ctx, key, pf.reader, pf.size, pf.contentType)
	if err != nil {
		tracing.Fail(span, err)
		return "", WrapStorageError(err)
	}
	return url, nil
}

func (s *EvidenceService) removeFile(ctx context.Context, key string) {
	if err := s.Storage.Delete(ctx, key); err != nil && !errors.Is(err, util.ErrNotFound) {
		logger.Log.Error("Failed to remove evidence file", zap.String("key", key), zap.Error(err))
	}
}

func evidenceFolder(candidateID uint) string {
	return util.EvidenceFolder + "/" + strconv.FormatUint(uint64(candidateID), 10)
}

// UploadEvidence stores the file and then the record. Nothing is persisted when
// validation fails, and the file is removed again if the record cannot be written.
func (s *EvidenceService) UploadEvidence(ctx context.Context, p model.Principal, in UploadEvidenceInput) (*model.Evidence, error) {
	if p.Role != model.Candidate && p.Role != model.Admin {
		return nil, util.ErrPermissionDenied
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		monitoring.EvidenceUploads.WithLabelValues("invalid").Inc()
		return nil, util.Validationf("title is required")
	}
	if _, ok := s.Catalog.FindCriterion(in.UnitID, in.CriterionID); !ok {
		monitoring.EvidenceUploads.WithLabelValues("invalid").Inc()
		if _, unitOK := s.Catalog.FindUnit(in.UnitID); !unitOK {
			return nil, util.Validationf("unknown unit %q", in.UnitID)
		}
		return nil, util.Validationf("unknown criterion %q in unit %s", in.CriterionID, in.UnitID)
	}

	pf, err := s.prepareFile(in.FileName, in.Size, in.Reader)
	if err != nil {
		monitoring.EvidenceUploads.WithLabelValues("invalid").Inc()
		return nil, err
	}
	defer pf.cleanup()

	id := model.GenerateUUID()
	key := ObjectKey(evidenceFolder(p.ID), id+pf.ext)

	url, err := s.store(ctx, key, pf)
	if err != nil {
		monitoring.EvidenceUploads.WithLabelValues("storage_error").Inc()
		return nil, err
	}

	ev := &model.Evidence{
		UUIDBase:    model.UUIDBase{ID: id},
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		CandidateID: p.ID,
		UploadedBy:  p.DisplayName,
		UploadDate:  s.now(),
		UnitID:      in.UnitID,
		CriterionID: in.CriterionID,
		Status:      model.EvidencePending,
		FileKey:     key,
		FileName:    util.BaseName(in.FileName),
		FileURL:     url,
		ContentType: pf.contentType,
		FileSize:    pf.size,
		MediaInfo:   pf.mediaInfo,
		Version:     1,
	}

	if err := s.Repo.Create(ctx, ev); err != nil {
		s.removeFile(ctx, key)
		monitoring.EvidenceUploads.WithLabelValues("storage_error").Inc()
		return nil, err
	}

	monitoring.EvidenceUploads.WithLabelValues("ok").Inc()
	logger.Log.Info("Evidence uploaded",
		zap.String("evidence_id", ev.ID),
		zap.Uint("candidate_id", ev.CandidateID),
		zap.String("unit_id", ev.UnitID),
		zap.String("criterion_id", ev.CriterionID),
	)
	s.publish(ctx, events.EvidenceUploaded, ev, "", p.ID)
	return ev, nil
}

// ResubmitEvidence replaces the file of an existing item and returns it to Pending.
func (s *EvidenceService) ResubmitEvidence(ctx context.Context, p model.Principal, id string, in ResubmitEvidenceInput) (*model.Evidence, error) {
	ev, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.CandidateID != p.ID && p.Role != model.Admin {
		return nil, util.ErrPermissionDenied
	}
	if err := CheckTransition(ev.Status, model.EvidencePending, s.Cfg.Evidence.StrictTransitions); err != nil {
		return nil, err
	}

	pf, err := s.prepareFile(in.FileName, in.Size, in.Reader)
	if err != nil {
		return nil, err
	}
	defer pf.cleanup()

	oldKey := ev.FileKey
	newKey := ObjectKey(evidenceFolder(ev.CandidateID), ev.ID+"-"+model.GenerateUUID()[:8]+pf.ext)

	url, err := s.store(ctx, newKey, pf)
	if err != nil {
		return nil, err
	}

	from := ev.Status
	ev.Status = model.EvidencePending
	ev.FileKey = newKey
	ev.FileName = util.BaseName(in.FileName)
	ev.FileURL = url
	ev.ContentType = pf.contentType
	ev.FileSize = pf.size
	ev.MediaInfo = pf.mediaInfo
	ev.UploadDate = s.now()

	if err := s.Repo.Update(ctx, ev, ev.Version); err != nil {
		s.removeFile(ctx, newKey)
		return nil, err
	}
	if oldKey != "" {
		s.removeFile(ctx, oldKey)
	}

	monitoring.EvidenceTransitions.WithLabelValues(string(from), string(ev.Status)).Inc()
	s.publish(ctx, events.EvidenceResubmitted, ev, from, p.ID)
	return ev, nil
}

// DeleteEvidence removes the record and then its file. A second delete of the
// same id reports util.ErrNotFound. If the file cannot be removed the record is
// written back, so the caller can retry.
func (s *EvidenceService) DeleteEvidence(ctx context.Context, p model.Principal, id string) error {
	ev, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if ev.CandidateID != p.ID && p.Role != model.Admin {
		return util.ErrPermissionDenied
	}

	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}

	ctx, span := tracing.StartStorageSpan(ctx, "delete", ev.FileKey)
	defer span.End()
	if err := s.Storage.Delete(ctx, ev.FileKey); err != nil {
		if !errors.Is(err, util.ErrNotFound) {
			tracing.Fail(span, err)
			if restoreErr := s.Repo.Create(ctx, ev); restoreErr != nil {
				logger.Log.Error("Failed to restore evidence after file delete failure",
					zap.String("evidence_id", id), zap.String("key", ev.FileKey), zap.Error(restoreErr))
			}
			return WrapStorageError(err)
		}
		logger.Log.Warn("Evidence file already missing", zap.String("evidence_id", id), zap.String("key", ev.FileKey))
	}

	s.publish(ctx, events.EvidenceDeleted, ev, "", p.ID)
	return nil
}

// SubmitFeedback applies an assessor decision to one evidence item.
func (s *EvidenceService) SubmitFeedback(ctx context.Context, p model.Principal, fb model.AssessorFeedback) (*model.Evidence, error) {
	if !p.CanReview() {
		return nil, util.ErrPermissionDenied
	}
	if !fb.Status.IsValid() {
		return nil, util.Validationf("unknown evidence status %q", fb.Status)
	}

	ev, err := s.Repo.FindByID(ctx, fb.EvidenceID)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(ev.Status, fb.Status, s.Cfg.Evidence.StrictTransitions); err != nil {
		return nil, err
	}

	assessorName := strings.TrimSpace(fb.AssessorName)
	if assessorName == "" {
		assessorName = p.DisplayName
	}
	assessedAt := fb.AssessmentDate
	if assessedAt.IsZero() {
		assessedAt = s.now()
	}
	feedback := fb.Feedback
	assessorID := p.ID

	from := ev.Status
	ev.Status = fb.Status
	ev.AssessorFeedback = &feedback
	ev.AssessorID = &assessorID
	ev.AssessorName = assessorName
	ev.AssessmentDate = &assessedAt

	if err := s.Repo.Update(ctx, ev, fb.ExpectedVersion); err != nil {
		return nil, err
	}

	monitoring.EvidenceTransitions.WithLabelValues(string(from), string(ev.Status)).Inc()
	logger.Log.Info("Evidence assessed",
		zap.String("evidence_id", ev.ID),
		zap.String("from", string(from)),
		zap.String("to", string(ev.Status)),
		zap.Uint("assessor_id", p.ID),
	)
	s.publish(ctx, events.EvidenceAssessed, ev, from, p.ID)
	return ev, nil
}

func (s *EvidenceService) publish(ctx context.Context, eventType string, ev *model.Evidence, from model.EvidenceStatus, actorID uint) {
	if s.Publisher == nil {
		return
	}
	err := s.Publisher.Publish(ctx, events.EvidenceEvent{
		Type:        eventType,
		EvidenceID:  ev.ID,
		CandidateID: ev.CandidateID,
		UnitID:      ev.UnitID,
		CriterionID: ev.CriterionID,
		FromStatus:  string(from),
		Status:      string(ev.Status),
		ActorID:     actorID,
		OccurredAt:  s.now(),
	})
	if err != nil {
		logger.Log.Warn("Failed to publish evidence event", zap.String("type", eventType), zap.String("evidence_id", ev.ID), zap.Error(err))
	}
}
