package controller

import (
	"fmt"
	"net/http"
	"time"

	"portfolio_backend/internal/model"
	"portfolio_backend/internal/service"
	"portfolio_backend/internal/util"
	"portfolio_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type EvidenceController struct {
	EvidenceService *service.EvidenceService
}

func NewEvidenceController(evidenceService *service.EvidenceService) *EvidenceController {
	return &EvidenceController{EvidenceService: evidenceService}
}

// UploadEvidenceRequest holds the non-file multipart fields.
type UploadEvidenceRequest struct {
	Title       string `form:"title" binding:"required"`
	Description string `form:"description"`
	UnitID      string `form:"unitId" binding:"required"`
	CriterionID string `form:"criterionId" binding:"required"`
}

// FeedbackRequest defines model for assessor feedback
// swagger:model FeedbackRequest
type FeedbackRequest struct {
	Status          model.EvidenceStatus `json:"status" binding:"required"`
	Feedback        string               `json:"feedback"`
	AssessorName    string               `json:"assessorName"`
	AssessmentDate  *time.Time           `json:"assessmentDate"`
	ExpectedVersion int                  `json:"expectedVersion" binding:"min=0"`
}

// ListEvidence godoc
// @Summary Evidence of a candidate, oldest first
// @Tags evidence
// @Produce json
// @Security ApiKeyAuth
// @Param candidateId query int false "Candidate (assessors and admins only)"
// @Success 200 {object} util.Response{data=[]model.Evidence}
// @Failure 403 {object} util.Response
// @Router /api/evidence [get]
func (c *EvidenceController) ListEvidence(ctx *gin.Context) {
	candidateID, ok := candidateParam(ctx)
	if !ok {
		return
	}

	list, err := c.EvidenceService.ListEvidence(ctx.Request.Context(), candidateID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// ListPending godoc
// @Summary Assessor worklist of pending evidence
// @Tags assessor
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Evidence}
// @Failure 403 {object} util.Response
// @Router /api/assessor/evidence/pending [get]
func (c *EvidenceController) ListPending(ctx *gin.Context) {
	list, err := c.EvidenceService.ListPending(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// GetEvidence godoc
// @Summary One evidence item
// @Tags evidence
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Evidence ID"
// @Success 200 {object} util.Response{data=model.Evidence}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/evidence/{id} [get]
func (c *EvidenceController) GetEvidence(ctx *gin.Context) {
	principal, ok := util.GetPrincipal(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	ev, err := c.EvidenceService.GetEvidence(ctx.Request.Context(), principal, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, ev)
}

// UploadEvidence godoc
// @Summary Upload evidence for a unit criterion
// @Tags evidence
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param unitId formData string true "Unit ID"
// @Param criterionId formData string true "Criterion ID"
// @Param file formData file true "Evidence file"
// @Success 201 {object} util.Response{data=model.Evidence}
// @Failure 400 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/evidence [post]
func (c *EvidenceController) UploadEvidence(ctx *gin.Context) {
	principal, ok := util.GetPrincipal(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req UploadEvidenceRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "File is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	ev, err := c.EvidenceService.UploadEvidence(ctx.Request.Context(), principal, service.UploadEvidenceInput{
		Title:       req.Title,
		Description: req.Description,
		UnitID:      req.UnitID,
		CriterionID: req.CriterionID,
		FileName:    fileHeader.Filename,
		Size:        fileHeader.Size,
		Reader:      file,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, ev)
}

// ResubmitEvidence godoc
// @Summary Replace the file of an evidence item and return it to Pending
// @Tags evidence
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Evidence ID"
// @Param file formData file true "Evidence file"
// @Success 200 {object} util.Response{data=model.Evidence}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/evidence/{id}/file [put]
func (c *EvidenceController) ResubmitEvidence(ctx *gin.Context) {
	principal, ok := util.GetPrincipal(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "File is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	ev, err := c.EvidenceService.ResubmitEvidence(ctx.Request.Context(), principal, ctx.Param("id"), service.ResubmitEvidenceInput{
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
		Reader:   file,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, ev)
}

// DownloadEvidence godoc
// @Summary Stream the stored evidence file
// @Tags evidence
// @Produce octet-stream
// @Security ApiKeyAuth
// @Param id path string true "Evidence ID"
// @Success 200 {file} file
// @Failure 404 {object} util.Response
// @Router /api/evidence/{id}/file [get]
func (c *EvidenceController) DownloadEvidence(ctx *gin.Context) {
	principal, ok := util.GetPrincipal(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	rc, ev, err := c.EvidenceService.OpenEvidenceFile(ctx.Request.Context(), principal, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	defer rc.Close()

	contentType := ev.ContentType
	if contentType == "" {
		contentType = util.MimeOctetStream
	}
	ctx.DataFromReader(http.StatusOK, ev.FileSize, contentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", ev.FileName),
	})
}

// DeleteEvidence godoc
// @Summary Delete an evidence item and its file
// @Tags evidence
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Evidence ID"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/evidence/{id} [delete]
func (c *EvidenceController) DeleteEvidence(ctx *gin.Context) {
	principal, ok := util.GetPrincipal(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	if err := c.EvidenceService.DeleteEvidence(ctx.Request.Context(), principal, ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": ctx.Param("id")})
}

// SubmitFeedback godoc
// @Summary Record an assessor decision
// @Tags assessor
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Evidence ID"
// @Param body body FeedbackRequest true "Decision"
// @Success 200 {object} util.Response{data=model.Evidence}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/assessor/evidence/{id}/feedback [post]
func (c *EvidenceController) SubmitFeedback(ctx *gin.Context) {
	principal, ok := util.GetPrincipal(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req FeedbackRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	fb := model.AssessorFeedback{
		EvidenceID:      ctx.Param("id"),
		AssessorName:    req.AssessorName,
		Feedback:        req.Feedback,
		Status:          req.Status,
		ExpectedVersion: req.ExpectedVersion,
	}
	if req.AssessmentDate != nil {
		fb.AssessmentDate = *req.AssessmentDate
	}

	ev, err := c.EvidenceService.SubmitFeedback(ctx.Request.Context(), principal, fb)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	logger.Log.Debug("Feedback recorded", zap.String("evidence_id", ev.ID), zap.Int("version", ev.Version))
	util.Success(ctx, ev)
}
