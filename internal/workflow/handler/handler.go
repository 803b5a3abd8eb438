// Package handler exposes the workflow engine over HTTP.
package handler

import (
	"net/http"

	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/service"
	"brokerage_backend/internal/workflow/transport"
	"brokerage_backend/platform/httpkit"
	"brokerage_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles authenticated workflow requests.
type Handler struct {
	svc        *service.Service
	val        *validator.Validator
	thresholds *service.Thresholds
}

// New creates a new workflow handler.
func New(svc *service.Service, val *validator.Validator, thresholds *service.Thresholds) *Handler {
	return &Handler{svc: svc, val: val, thresholds: thresholds}
}

// RegisterRoutes registers the record routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/insights", h.Insights)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/next-stages", h.NextStages)
	rg.GET("/:id/audit", h.AuditTrail)
	rg.GET("/:id/payment", h.GetPayment)
	rg.POST("/:id/advance", h.Advance)
	rg.POST("/:id/auto-advance", h.AutoAdvance)
	rg.POST("/:id/resync", h.Resync)
	rg.POST("/:id/portal-link", h.IssuePortalLink)
	rg.POST("/:id/payment", h.ProvisionPayment)
}

// RegisterPaymentRoutes registers the payment routes.
func (h *Handler) RegisterPaymentRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/complete", h.CompletePayment)
}

// Create handles POST /api/v1/records
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	orgID, userID, ok := mustGetIdentity(c)
	if !ok {
		return
	}

	rec, err := h.svc.CreateRecord(c.Request.Context(), service.CreateRecordParams{
		OrganizationID: orgID,
		Kind:           catalog.Kind(req.Kind),
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientPhone:    req.ClientPhone,
		Reference:      req.Reference,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
	}, userID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToRecordResponse(rec))
}

// List handles GET /api/v1/records
func (h *Handler) List(c *gin.Context) {
	var req transport.ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	orgID, _, ok := mustGetIdentity(c)
	if !ok {
		return
	}

	recs, err := h.svc.ListRecords(c.Request.Context(), orgID,
		transport.ParseKind(req.Kind), transport.ParseStages(req.Stages), req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"records": transport.ToRecordResponses(recs)})
}

// GetByID handles GET /api/v1/records/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, orgID, ok := mustGetRecordScope(c)
	if !ok {
		return
	}

	rec, err := h.svc.GetRecord(c.Request.Context(), orgID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToRecordResponse(rec))
}

// NextStages handles GET /api/v1/records/:id/next-stages
func (h *Handler) NextStages(c *gin.Context) {
	id, orgID, ok := mustGetRecordScope(c)
	if !ok {
		return
	}

	stages, err := h.svc.LegalNextStages(c.Request.Context(), orgID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"nextStages": stages})
}

// Advance handles POST /api/v1/records/:id/advance
func (h *Handler) Advance(c *gin.Context) {
	id, orgID, ok := mustGetRecordScope(c)
	if !ok {
		return
	}

	var req transport.AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	// Scope check before mutating.
	if _, err := h.svc.GetRecord(c.Request.Context(), orgID, id); httpkit.HandleError(c, err) {
		return
	}

	rec, err := h.svc.Advance(c.Request.Context(), id, catalog.Stage(req.TargetStage), userID,
		service.AdvanceOptions{Resync: req.Resync})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToRecordResponse(rec))
}

// AutoAdvance handles POST /api/v1/records/:id/auto-advance
func (h *Handler) AutoAdvance(c *gin.Context) {
	id, orgID, ok := mustGetRecordScope(c)
	if !ok {
		return
	}

	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	if _, err := h.svc.GetRecord(c.Request.Context(), orgID, id); httpkit.HandleError(c, err) {
		return
	}

	rec, advanced, err := h.svc.AutoAdvance(c.Request.Context(), id, userID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"advanced": advanced,
		"record":   transport.ToRecordResponse(rec),
	})
}

// IssuePortalLink handles POST /api/v1/records/:id/portal-link
func (h *Handler) IssuePortalLink(c *gin.Context) {
	id, orgID, ok := mustGetRecordScope(c)
	if !ok {
		return
	}

	rec, err := h.svc.GetRecord(c.Request.Context(), orgID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	link, err := h.svc.EnsurePortalLink(c.Request.Context(), rec)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToPortalLinkResponse(link))
}

// ProvisionPayment handles POST /api/v1/records/:id/payment
func (h *Handler) ProvisionPayment(c *gin.Context) {
	id, orgID, ok := mustGetRecordScope(c)
	if !ok {
		return
	}

	rec, err := h.svc.GetRecord(c.Request.Context(), orgID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	tx, err := h.svc.EnsurePaymentTransaction(c.Request.Context(), rec)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToPaymentResponse(tx))
}

// Resync handles POST /api/v1/records/:id/resync
func (h *Handler) Resync(c *gin.Context) {
	id, orgID, ok := mustGetRecordScope(c)
	if !ok {
		return
	}

	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	if _, err := h.svc.GetRecord(c.Request.Context(), orgID, id); httpkit.HandleError(c, err) {
		return
	}

	res, err := h.svc.Resync(c.Request.Context(), id, userID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToResyncResponse(res))
}

// AuditTrail handles GET /api/v1/records/:id/audit
func (h *Handler) AuditTrail(c *gin.Context) {
	id, orgID, ok := mustGetRecordScope(c)
	if !ok {
		return
	}

	entries, err := h.svc.AuditTrail(c.Request.Context(), orgID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"entries": transport.ToAuditResponses(entries)})
}

// GetPayment handles GET /api/v1/records/:id/payment
func (h *Handler) GetPayment(c *gin.Context) {
	id, orgID, ok := mustGetRecordScope(c)
	if !ok {
		return
	}

	tx, err := h.svc.PaymentForRecord(c.Request.Context(), orgID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	if tx == nil {
		httpkit.Error(c, http.StatusNotFound, "no payment transaction for record", nil)
		return
	}

	httpkit.OK(c, transport.ToPaymentResponse(tx))
}

// CompletePayment handles POST /api/v1/payments/:id/complete
func (h *Handler) CompletePayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	orgID, userID, ok := mustGetIdentity(c)
	if !ok {
		return
	}

	tx, err := h.svc.CompletePayment(c.Request.Context(), orgID, id, userID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToPaymentResponse(tx))
}

// Insights handles GET /api/v1/records/insights
func (h *Handler) Insights(c *gin.Context) {
	orgID, _, ok := mustGetIdentity(c)
	if !ok {
		return
	}

	report, err := h.svc.Scan(c.Request.Context(), orgID, h.thresholds)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, report)
}

func mustGetIdentity(c *gin.Context) (orgID, userID uuid.UUID, ok bool) {
	orgID, ok = httpkit.TenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return uuid.Nil, uuid.Nil, false
	}
	userID, ok = httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, userID, true
}

func mustGetRecordScope(c *gin.Context) (id, orgID uuid.UUID, ok bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, uuid.Nil, false
	}
	orgID, ok = httpkit.TenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return id, orgID, true
}
