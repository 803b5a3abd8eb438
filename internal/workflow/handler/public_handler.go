package handler

import (
	"net/http"
	"strings"

	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/service"
	"brokerage_backend/internal/workflow/transport"
	"brokerage_backend/platform/httpkit"
	"brokerage_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// PublicHandler serves the unauthenticated client portal. Access is gated by
// the opaque link token alone, so these routes sit behind the stricter public
// rate limiter.
type PublicHandler struct {
	svc *service.Service
	val *validator.Validator
}

// NewPublicHandler creates a handler for the public portal routes.
func NewPublicHandler(svc *service.Service, val *validator.Validator) *PublicHandler {
	return &PublicHandler{svc: svc, val: val}
}

// RegisterRoutes registers the portal routes.
func (h *PublicHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:token", h.Resolve)
	rg.POST("/:token/decision", h.Decide)
}

// Resolve handles GET /api/v1/public/portal/:token
func (h *PublicHandler) Resolve(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	view, err := h.svc.ResolvePortalLink(c.Request.Context(), token)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, view)
}

// Decide handles POST /api/v1/public/portal/:token/decision
func (h *PublicHandler) Decide(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.PortalDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	rec, err := h.svc.SubmitPortalDecision(c.Request.Context(), token, catalog.Stage(req.Decision))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"reference": rec.Reference,
		"stage":     rec.Stage,
		"status":    rec.Status,
	})
}
