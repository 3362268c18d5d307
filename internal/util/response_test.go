package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"portfolio_backend/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validationf("bad unit"), http.StatusBadRequest},
		{"permission", ErrPermissionDenied, http.StatusForbidden},
		{"not found", ErrEvidenceNotFound, http.StatusNotFound},
		{"version conflict", ErrVersionConflict, http.StatusConflict},
		{"invalid transition", fmt.Errorf("%w: Approved -> Pending", ErrInvalidTransition), http.StatusConflict},
		{"incomplete", &IncompletePortfolioError{Qualification: model.EWA, Gaps: []model.PortfolioGap{{UnitID: "U"}}}, http.StatusUnprocessableEntity},
		{"storage", fmt.Errorf("%w: %w", ErrStorage, errors.New("timeout")), http.StatusBadGateway},
		{"credentials", ErrInvalidCredentials, http.StatusUnauthorized},
		{"email taken", ErrEmailRegistered, http.StatusConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			HandleError(c, tt.err)

			assert.Equal(t, tt.want, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Code)
		})
	}
}

func TestHandleError_IncompleteCarriesGaps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleError(c, &IncompletePortfolioError{
		Qualification: model.EWA,
		Gaps:          []model.PortfolioGap{{UnitID: "EWA-1", UnitTitle: "Safety", CriterionID: "EWA-1.2"}},
	})

	var resp struct {
		Message string `json:"message"`
		Data    struct {
			Gaps []model.PortfolioGap `json:"gaps"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "EWA-1")
	require.Len(t, resp.Data.Gaps, 1)
	assert.Equal(t, "EWA-1.2", resp.Data.Gaps[0].CriterionID)
}
