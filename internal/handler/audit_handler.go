package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dulcevicio/course-api/internal/service"
	appErrors "github.com/dulcevicio/course-api/pkg/errors"
	"github.com/dulcevicio/course-api/pkg/response"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	audit *service.AuditService
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// ListByResource godoc
// @Summary List audit entries for a resource
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param resource path string true "Resource kind"
// @Param resourceId path string true "Resource ID"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /audit/{resource}/{resourceId} [get]
func (h *AuditHandler) ListByResource(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := h.audit.ListByResource(c.Request.Context(), *claims, c.Param("resource"), c.Param("resourceId"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
