package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
	"github.com/noltfinance/nolt-ops-api/internal/services"
)

// AuditHandler serves the global security log. Super admin only.
type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func auditQuery(c *gin.Context) *repository.AuditQuery {
	query := &repository.AuditQuery{ListQuery: repository.NewListQuery()}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "50"))
	query.Action = c.Query("action")
	if actorID, err := strconv.ParseUint(c.Query("actor_id"), 10, 32); err == nil {
		query.ActorID = uint(actorID)
	}
	return query
}

// SecurityLog lists recent audit entries across all applications
func (h *AuditHandler) SecurityLog(c *gin.Context) {
	query := auditQuery(c)

	entries, total, err := h.auditService.SecurityLog(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, auditResponse(entries, query, total))
}

// SensitiveAccess lists sensitive-field reveals only
func (h *AuditHandler) SensitiveAccess(c *gin.Context) {
	query := auditQuery(c)

	entries, total, err := h.auditService.SensitiveAccessLog(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, auditResponse(entries, query, total))
}

func auditResponse(entries []models.AuditEntry, query *repository.AuditQuery, total int64) gin.H {
	responses := make([]models.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		responses = append(responses, entries[i].ToResponse())
	}

	return gin.H{
		"entries": responses,
		"pagination": gin.H{
			"page":     query.Page,
			"per_page": query.PerPage,
			"total":    total,
		},
	}
}
