package handler

import (
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
	"github.com/culinaryhub/culinary-school-api/pkg/response"
	"github.com/culinaryhub/culinary-school-api/pkg/storage"
)

// FileHandler serves stored files through signed download tokens.
type FileHandler struct {
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

// NewFileHandler constructs FileHandler.
func NewFileHandler(store *storage.LocalStorage, signer *storage.SignedURLSigner) *FileHandler {
	return &FileHandler{storage: store, signer: signer}
}

// Download godoc
// @Summary Download a stored file by signed token
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "download token required"))
		return
	}

	_, relPath, _, err := h.signer.Parse(token)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token"))
		return
	}

	file, err := h.storage.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(relPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `inline; filename="`+filepath.Base(relPath)+`"`)
	c.Header("Content-Type", contentType)
	http.ServeContent(c.Writer, c.Request, filepath.Base(relPath), info.ModTime(), file)
}
