package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/response"
	"github.com/noah-isme/smart-classroom-api/pkg/storage"
)

type fileTokenParser interface {
	Parse(token string) (storage.FileToken, error)
}

type fileOpener interface {
	Open(key string) (*os.File, error)
}

// FileHandler streams uploaded files behind signed download tokens.
type FileHandler struct {
	signer fileTokenParser
	files  fileOpener
}

// NewFileHandler constructs the handler.
func NewFileHandler(signer fileTokenParser, files fileOpener) *FileHandler {
	return &FileHandler{signer: signer, files: files}
}

// Download godoc
// @Summary Download a file by signed token
// @Tags Files
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /files [get]
func (h *FileHandler) Download(c *gin.Context) {
	token, err := h.signer.Parse(c.Query("token"))
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			response.Error(c, appErrors.Clone(appErrors.ErrGone, "download link expired"))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid download link"))
		return
	}

	file, err := h.files.Open(token.Key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat file"))
		return
	}

	name := path.Base(token.Key)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Cache-Control", "private, no-store")
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), file)
}
