package controller

import (
	"strconv"

	"portfolio_backend/internal/model"
	"portfolio_backend/internal/service"
	"portfolio_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// PortfolioController serves the catalog and the derived progress views.
type PortfolioController struct {
	Catalog  *service.CatalogService
	Progress *service.ProgressService
}

func NewPortfolioController(catalog *service.CatalogService, progress *service.ProgressService) *PortfolioController {
	return &PortfolioController{Catalog: catalog, Progress: progress}
}

func qualificationParam(ctx *gin.Context) (model.Qualification, bool) {
	q, ok := model.ParseQualification(ctx.Param("qualification"))
	if !ok {
		util.BadRequest(ctx, "unknown qualification "+strconv.Quote(ctx.Param("qualification")))
		return "", false
	}
	return q, true
}

// candidateParam resolves ?candidateId= against the caller.
func candidateParam(ctx *gin.Context) (uint, bool) {
	principal, ok := util.GetPrincipal(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return 0, false
	}

	var requested uint
	if raw := ctx.Query("candidateId"); raw != "" {
		if requested = util.MustParseUint(raw); requested == 0 {
			util.BadRequest(ctx, "invalid candidateId")
			return 0, false
		}
	}

	candidateID, err := service.ResolveCandidate(principal, requested)
	if err != nil {
		util.HandleError(ctx, err)
		return 0, false
	}
	return candidateID, true
}

// ListQualifications godoc
// @Summary Qualifications with unit counts
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]object}
// @Router /api/qualifications [get]
func (c *PortfolioController) ListQualifications(ctx *gin.Context) {
	qs := c.Catalog.Qualifications()
	out := make([]gin.H, 0, len(qs))
	for _, q := range qs {
		out = append(out, gin.H{"name": q, "totalUnits": c.Catalog.UnitCount(q)})
	}
	util.Success(ctx, out)
}

// ListUnits godoc
// @Summary Units of a qualification in catalog order
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param qualification path string true "EWA or NVQ"
// @Success 200 {object} util.Response{data=[]model.Unit}
// @Failure 400 {object} util.Response
// @Router /api/qualifications/{qualification}/units [get]
func (c *PortfolioController) ListUnits(ctx *gin.Context) {
	q, ok := qualificationParam(ctx)
	if !ok {
		return
	}
	util.Success(ctx, c.Catalog.GetUnitsByQualification(q))
}

// GetStats godoc
// @Summary Completed and total units for a candidate
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param qualification path string true "EWA or NVQ"
// @Param candidateId query int false "Candidate (assessors and admins only)"
// @Success 200 {object} util.Response{data=model.QualificationStats}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /api/qualifications/{qualification}/stats [get]
func (c *PortfolioController) GetStats(ctx *gin.Context) {
	q, ok := qualificationParam(ctx)
	if !ok {
		return
	}
	candidateID, ok := candidateParam(ctx)
	if !ok {
		return
	}

	stats, err := c.Progress.StatsForCandidate(ctx.Request.Context(), q, candidateID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// GetProgress godoc
// @Summary Progress with per-unit completion
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param qualification path string true "EWA or NVQ"
// @Param candidateId query int false "Candidate (assessors and admins only)"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /api/qualifications/{qualification}/progress [get]
func (c *PortfolioController) GetProgress(ctx *gin.Context) {
	q, ok := qualificationParam(ctx)
	if !ok {
		return
	}
	candidateID, ok := candidateParam(ctx)
	if !ok {
		return
	}

	progress, units, err := c.Progress.ProgressForCandidate(ctx.Request.Context(), q, candidateID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"progress": progress,
		"units":    units,
	})
}

// Compile godoc
// @Summary Compile the portfolio for a qualification
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param qualification path string true "EWA or NVQ"
// @Param candidateId query int false "Candidate (assessors and admins only)"
// @Success 200 {object} util.Response{data=model.CompilationResult}
// @Failure 400 {object} util.Response
// @Failure 422 {object} util.Response "Missing approved evidence, with the full gap list"
// @Router /api/qualifications/{qualification}/compile [post]
func (c *PortfolioController) Compile(ctx *gin.Context) {
	q, ok := qualificationParam(ctx)
	if !ok {
		return
	}
	candidateID, ok := candidateParam(ctx)
	if !ok {
		return
	}

	result, err := c.Progress.CompileForCandidate(ctx.Request.Context(), q, candidateID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
