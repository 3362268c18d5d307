package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"portfolio_backend/internal/config"
	"portfolio_backend/internal/model"
	"portfolio_backend/internal/repository"
	"portfolio_backend/internal/service"
	"portfolio_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\n")

var (
	candidate = model.Principal{ID: 7, DisplayName: "Casey Candidate", Role: model.Candidate}
	assessor  = model.Principal{ID: 20, DisplayName: "Ada Assessor", Role: model.Assessor}
)

type fixture struct {
	router  *gin.Engine
	storage *service.MemoryStorageProvider
	repo    *repository.MemoryEvidenceRepository
	as      model.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog, err := service.NewCatalogService([]model.Unit{
		{ID: "E1", Qualification: model.EWA, Title: "Safe isolation", Criteria: []model.Criterion{
			{ID: "E1.1", Text: "Isolate the supply"},
		}},
		{ID: "N1", Qualification: model.NVQ, Title: "Site records", Criteria: []model.Criterion{
			{ID: "N1.1", Text: "Keep records"},
		}},
	})
	require.NoError(t, err)

	cfg := &config.Config{
		Upload:   config.UploadConfig{MaxSizeMB: 5, AllowedExtensions: []string{".pdf", ".png"}},
		Download: config.DownloadConfig{Extension: ".pdf", Folder: "downloads"},
	}

	f := &fixture{
		storage: service.NewMemoryStorageProvider(),
		repo:    repository.NewMemoryEvidenceRepository(),
		as:      candidate,
	}
	evidenceSvc := service.NewEvidenceService(f.repo, f.storage, catalog, nil, cfg)
	evidence := NewEvidenceController(evidenceSvc)
	portfolio := NewPortfolioController(catalog, service.NewProgressService(catalog, f.repo))
	files := NewFileController(f.storage, &cfg.Download)

	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		util.SetPrincipal(c, f.as)
		c.Next()
	})
	api.GET("/qualifications", portfolio.ListQualifications)
	api.GET("/qualifications/:qualification/units", portfolio.ListUnits)
	api.GET("/qualifications/:qualification/progress", portfolio.GetProgress)
	api.POST("/qualifications/:qualification/compile", portfolio.Compile)
	api.GET("/evidence", evidence.ListEvidence)
	api.POST("/evidence", evidence.UploadEvidence)
	api.GET("/evidence/:id/file", evidence.DownloadEvidence)
	api.DELETE("/evidence/:id", evidence.DeleteEvidence)
	api.POST("/assessor/evidence/:id/feedback", evidence.SubmitFeedback)
	api.GET("/files/:name", files.Download)
	f.router = r
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) upload(t *testing.T, unitID, criterionID string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("title", "Isolation record"))
	require.NoError(t, mw.WriteField("unitId", unitID))
	require.NoError(t, mw.WriteField("criterionId", criterionID))
	part, err := mw.CreateFormFile("file", "record.pdf")
	require.NoError(t, err)
	_, err = part.Write(pdfBytes)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/evidence", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return f.do(req)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestUploadEvidence(t *testing.T) {
	f := newFixture(t)

	w := f.upload(t, "E1", "E1.1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var ev model.Evidence
	decode(t, w, &ev)
	assert.Equal(t, uint(7), ev.CandidateID)
	assert.Equal(t, model.EvidencePending, ev.Status)
	assert.Equal(t, "record.pdf", ev.FileName)
	assert.Equal(t, 1, f.storage.Len())
}

func TestUploadEvidence_Rejected(t *testing.T) {
	f := newFixture(t)

	w := f.upload(t, "E9", "E9.1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.upload(t, "E1", "N1.1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/evidence", strings.NewReader("title=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusBadRequest, f.do(req).Code)

	assert.Zero(t, f.storage.Len())
}

func TestDownloadAndDeleteEvidence(t *testing.T) {
	f := newFixture(t)

	var ev model.Evidence
	decode(t, f.upload(t, "E1", "E1.1"), &ev)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/evidence/"+ev.ID+"/file", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pdfBytes, w.Body.Bytes())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "record.pdf")

	w = f.do(httptest.NewRequest(http.MethodDelete, "/api/evidence/"+ev.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, f.storage.Len())

	w = f.do(httptest.NewRequest(http.MethodDelete, "/api/evidence/"+ev.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompile(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/qualifications/ewa/compile", nil))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var gaps struct {
		Gaps []model.PortfolioGap `json:"gaps"`
	}
	env := decode(t, w, &gaps)
	assert.Contains(t, env.Message, "E1")
	require.Len(t, gaps.Gaps, 1)
	assert.Equal(t, "E1.1", gaps.Gaps[0].CriterionID)

	var ev model.Evidence
	decode(t, f.upload(t, "E1", "E1.1"), &ev)

	f.as = assessor
	body := `{"status":"Approved","feedback":"Well documented"}`
	req := httptest.NewRequest(http.MethodPost, "/api/assessor/evidence/"+ev.ID+"/feedback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = f.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var assessed model.Evidence
	decode(t, w, &assessed)
	assert.Equal(t, model.EvidenceApproved, assessed.Status)
	assert.Equal(t, "Ada Assessor", assessed.AssessorName)

	f.as = candidate
	w = f.do(httptest.NewRequest(http.MethodPost, "/api/qualifications/EWA/compile", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result model.CompilationResult
	decode(t, w, &result)
	assert.Equal(t, 1, result.UnitCount)
	assert.Equal(t, "EWA portfolio compiled: 1 units, 1 criteria, 1 approved evidence items", result.Summary)
}

func TestFeedback_StaleVersion(t *testing.T) {
	f := newFixture(t)

	var ev model.Evidence
	decode(t, f.upload(t, "E1", "E1.1"), &ev)

	f.as = assessor
	body := `{"status":"NeedsRevision","expectedVersion":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/assessor/evidence/"+ev.ID+"/feedback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusConflict, f.do(req).Code)
}

func TestQualificationParam(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/qualifications/BTEC/units", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(httptest.NewRequest(http.MethodGet, "/api/qualifications/nvq/units", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var units []model.Unit
	decode(t, w, &units)
	require.Len(t, units, 1)
	assert.Equal(t, "N1", units[0].ID)
}

func TestCandidateParam(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/evidence?candidateId=8", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(httptest.NewRequest(http.MethodGet, "/api/evidence?candidateId=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.as = assessor
	w = f.do(httptest.NewRequest(http.MethodGet, "/api/qualifications/EWA/progress?candidateId=7", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFileDownload(t *testing.T) {
	f := newFixture(t)
	_, err := f.storage.Upload(context.Background(), "downloads/handbook.pdf", bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf")
	require.NoError(t, err)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/files/handbook.pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="handbook.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, f.do(httptest.NewRequest(http.MethodGet, "/api/files/missing.pdf", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(httptest.NewRequest(http.MethodGet, "/api/files/notes.txt", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(httptest.NewRequest(http.MethodGet, "/api/files/archive.tar.pdf", nil)).Code)
}
