package handler

import (
	"net/http"

	"gestimmo_backend/internal/interventions/domain"
	"gestimmo_backend/internal/interventions/repository"
	"gestimmo_backend/internal/interventions/service"
	"gestimmo_backend/internal/interventions/transport"
	"gestimmo_backend/platform/httpkit"
	"gestimmo_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for interventions.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new interventions handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the intervention routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/actions", h.AvailableActions)
	rg.GET("/:id/comments", h.ListComments)

	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/reject", h.Reject)
	rg.POST("/:id/cancel", h.Cancel)

	rg.GET("/:id/quotes", h.ListQuotes)
	rg.POST("/:id/quotes", h.RequestQuote)
	rg.DELETE("/:id/quotes/:quoteId", h.CancelQuote)

	rg.POST("/:id/planning/start", h.StartPlanning)
	rg.GET("/:id/slots", h.ListSlots)
	rg.POST("/:id/slots", h.ProposeSlot)
	rg.POST("/:id/slots/:slotId/respond", h.RespondSlot)
	rg.POST("/:id/schedule", h.ConfirmSchedule)

	rg.POST("/:id/work/start", h.StartWork)
	rg.POST("/:id/work/complete", h.CompleteWork)
	rg.POST("/:id/work/validate", h.ValidateWork)
	rg.POST("/:id/finalize", h.Finalize)

	rg.GET("/:id/assignments", h.ListAssignments)
	rg.POST("/:id/assignments", h.AssignParticipant)
}

// actorFromIdentity derives the workflow actor from the authenticated
// identity. When a user carries several roles, the most privileged one wins.
func actorFromIdentity(c *gin.Context) (service.Actor, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return service.Actor{}, false
	}
	teamID := identity.TeamID()
	if teamID == nil {
		httpkit.Error(c, http.StatusBadRequest, "team scope is required", nil)
		return service.Actor{}, false
	}

	var role domain.Role
	switch {
	case identity.HasRole(string(domain.RoleAdmin)):
		role = domain.RoleAdmin
	case identity.HasRole(string(domain.RoleGestionnaire)):
		role = domain.RoleGestionnaire
	case identity.HasRole(string(domain.RolePrestataire)):
		role = domain.RolePrestataire
	case identity.HasRole(string(domain.RoleLocataire)):
		role = domain.RoleLocataire
	default:
		httpkit.Error(c, http.StatusForbidden, "no workflow role", nil)
		return service.Actor{}, false
	}

	return service.Actor{
		UserID: identity.UserID(),
		Role:   role,
		TeamID: *teamID,
	}, true
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// Create handles POST /api/interventions
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateInterventionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.CreateRequest(c.Request.Context(), actor, service.CreateRequestInput{
		LotRef:      req.LotRef,
		Type:        req.Type,
		Urgency:     domain.Urgency(req.Urgency),
		Description: req.Description,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// List handles GET /api/interventions
func (h *Handler) List(c *gin.Context) {
	var req transport.ListInterventionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	filter := repository.ListFilter{Limit: req.Limit, Offset: req.Offset}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		filter.Status = &status
	}

	items, total, err := h.svc.List(c.Request.Context(), actor, filter)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ListResponse{Items: items, Total: total})
}

// GetByID handles GET /api/interventions/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AvailableActions handles GET /api/interventions/:id/actions
func (h *Handler) AvailableActions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	actions, err := h.svc.AvailableActions(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"actions": actions})
}

// Approve handles POST /api/interventions/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.Approve(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Reject handles POST /api/interventions/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.Reject(c.Request.Context(), actor, id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Cancel handles POST /api/interventions/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.Cancel(c.Request.Context(), actor, id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// RequestQuote handles POST /api/interventions/:id/quotes
func (h *Handler) RequestQuote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.RequestQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.RequestQuote(c.Request.Context(), actor, id, service.RequestQuoteInput{
		ProviderID: req.ProviderID,
		Deadline:   req.Deadline,
		Notes:      req.Notes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// CancelQuote handles DELETE /api/interventions/:id/quotes/:quoteId
func (h *Handler) CancelQuote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quoteID, ok := parseID(c, "quoteId")
	if !ok {
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.CancelQuote(c.Request.Context(), actor, id, quoteID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListQuotes handles GET /api/interventions/:id/quotes
func (h *Handler) ListQuotes(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.ListQuotes(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// StartPlanning handles POST /api/interventions/:id/planning/start
func (h *Handler) StartPlanning(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.StartPlanning(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ProposeSlot handles POST /api/interventions/:id/slots
func (h *Handler) ProposeSlot(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.ProposeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.ProposeSlot(c.Request.Context(), actor, id, service.ProposeSlotInput{
		SlotDate:  req.SlotDate,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// RespondSlot handles POST /api/interventions/:id/slots/:slotId/respond
func (h *Handler) RespondSlot(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	slotID, ok := parseID(c, "slotId")
	if !ok {
		return
	}
	var req transport.RespondSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.RespondSlot(c.Request.Context(), actor, id, slotID, req.Response)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListSlots handles GET /api/interventions/:id/slots
func (h *Handler) ListSlots(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.ListSlots(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ConfirmSchedule handles POST /api/interventions/:id/schedule
func (h *Handler) ConfirmSchedule(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.ConfirmScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.ConfirmSchedule(c.Request.Context(), actor, id, service.ConfirmScheduleInput{
		SlotID:     req.SlotID,
		DirectDate: req.DirectDate,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// StartWork handles POST /api/interventions/:id/work/start
func (h *Handler) StartWork(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.StartWork(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CompleteWork handles POST /api/interventions/:id/work/complete
func (h *Handler) CompleteWork(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.CompleteWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.CompleteWork(c.Request.Context(), actor, id, req.Report)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ValidateWork handles POST /api/interventions/:id/work/validate
func (h *Handler) ValidateWork(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.ValidateWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.ValidateWork(c.Request.Context(), actor, id, service.ValidateWorkInput{
		Decision: domain.ValidationDecision(req.Decision),
		Rating:   req.Rating,
		Reason:   req.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Finalize handles POST /api/interventions/:id/finalize
func (h *Handler) Finalize(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.Finalize(c.Request.Context(), actor, id, req.FinalCostCents)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListComments handles GET /api/interventions/:id/comments
func (h *Handler) ListComments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.ListComments(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AssignParticipant handles POST /api/interventions/:id/assignments
func (h *Handler) AssignParticipant(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.AssignParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.AssignParticipant(c.Request.Context(), actor, id,
		req.UserID, domain.AssignmentRole(req.Role), req.IsPrimary)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// ListAssignments handles GET /api/interventions/:id/assignments
func (h *Handler) ListAssignments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFromIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.ListAssignments(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
