package handler

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/dulcevicio/course-api/internal/service"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
	"github.com/dulcevicio/course-api/pkg/response"
	"github.com/dulcevicio/course-api/pkg/storage"
)

type fileOpener interface {
	Open(filename string) (*os.File, error)
}

// DownloadHandler hands out short-lived signed links for files that must not
// be fetched through the public uploads URL, and serves them back.
type DownloadHandler struct {
	enrollments *service.EnrollmentService
	signer      *storage.SignedURLSigner
	files       fileOpener
	apiPrefix   string
}

// NewDownloadHandler constructs DownloadHandler.
func NewDownloadHandler(enrollments *service.EnrollmentService, signer *storage.SignedURLSigner, files fileOpener, apiPrefix string) *DownloadHandler {
	return &DownloadHandler{enrollments: enrollments, signer: signer, files: files, apiPrefix: apiPrefix}
}

// CertificateLink godoc
// @Summary Get a short-lived download link for a certificate
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/certificate/link [get]
func (h *DownloadHandler) CertificateLink(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	// Get enforces ownership for regular users.
	enrollment, err := h.enrollments.Get(c.Request.Context(), *claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if enrollment.CertificateURL == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "certificate not available yet"))
		return
	}

	relPath := fmt.Sprintf("certificates/%s.pdf", enrollment.ID)
	token, expiresAt, err := h.signer.Generate(enrollment.ID, relPath)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"download_url": fmt.Sprintf("%s/downloads/%s", h.apiPrefix, token),
		"expires_at":   expiresAt,
	}, nil)
}

// Download godoc
// @Summary Download a file referenced by a signed token
// @Tags Downloads
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200
// @Router /downloads/{token} [get]
func (h *DownloadHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link"))
		return
	}
	file, err := h.files.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", info.Name()),
	})
}
