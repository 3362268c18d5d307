package controller

import (
	"fmt"
	"mime"
	"net/http"

	"portfolio_backend/internal/config"
	"portfolio_backend/internal/service"
	"portfolio_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// FileController serves published documents from the download folder of the
// document store.
type FileController struct {
	Storage service.StorageProvider
	Cfg     *config.DownloadConfig
}

func NewFileController(storage service.StorageProvider, cfg *config.DownloadConfig) *FileController {
	return &FileController{Storage: storage, Cfg: cfg}
}

// Download godoc
// @Summary Download a published document
// @Tags files
// @Produce octet-stream
// @Security ApiKeyAuth
// @Param name path string true "File name"
// @Success 200 {file} file
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/files/{name} [get]
func (c *FileController) Download(ctx *gin.Context) {
	name, err := util.SanitizeDownloadName(ctx.Param("name"), c.Cfg.Extension)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	rc, err := c.Storage.Open(ctx.Request.Context(), service.ObjectKey(c.Cfg.Folder, name))
	if err != nil {
		util.HandleError(ctx, service.WrapStorageError(err))
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(util.FileExt(name))
	if contentType == "" {
		contentType = util.MimeOctetStream
	}
	ctx.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}
