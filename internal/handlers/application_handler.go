package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noltfinance/nolt-ops-api/internal/middleware"
	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
	"github.com/noltfinance/nolt-ops-api/internal/services"
)

type ApplicationHandler struct {
	appService    *services.ApplicationService
	exportService *services.ExportService
}

func NewApplicationHandler(appService *services.ApplicationService, exportService *services.ExportService) *ApplicationHandler {
	return &ApplicationHandler{appService: appService, exportService: exportService}
}

func queueQuery(c *gin.Context) *repository.ApplicationQuery {
	query := &repository.ApplicationQuery{ListQuery: repository.NewListQuery()}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search_term")
	query.Type = c.Query("type")
	query.Status = c.Query("status")
	query.SortBy = c.Query("sort_by")
	query.SortDir = c.Query("sort_dir")
	return query
}

// Index lists the caller's visible queue
func (h *ApplicationHandler) Index(c *gin.Context) {
	query := queueQuery(c)

	apps, total, err := h.appService.VisibleQueue(c.Request.Context(), middleware.GetActor(c), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.ApplicationResponse, 0, len(apps))
	for i := range apps {
		responses = append(responses, apps[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"applications": responses,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// Show returns one application with its audit trail
func (h *ApplicationHandler) Show(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}

	app, err := h.appService.Get(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, app.ToResponse())
}

// Create registers a new application in the queue
func (h *ApplicationHandler) Create(c *gin.Context) {
	var app models.Application
	if err := c.ShouldBindJSON(&app); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.appService.Create(c.Request.Context(), &app); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, app.ToResponse())
}

// Actions returns the actions the caller may perform on the application
func (h *ApplicationHandler) Actions(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}

	actions, err := h.appService.ActionsFor(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

type transitionRequest struct {
	Action         string `json:"action" binding:"required"`
	ExpectedStatus string `json:"expected_status" binding:"required"`
	Comment        string `json:"comment"`
	EligibleAmount string `json:"eligible_amount"`
}

// Transition applies a workflow action to the application
func (h *ApplicationHandler) Transition(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := h.appService.ApplyTransition(
		c.Request.Context(),
		middleware.GetActor(c),
		id,
		req.ExpectedStatus,
		req.Action,
		services.TransitionPayload{
			Comment:        req.Comment,
			EligibleAmount: req.EligibleAmount,
		},
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, app.ToResponse())
}

type reassignRequest struct {
	NewOwnerID uint `json:"new_owner_id" binding:"required"`
}

// Reassign moves the application to another owner
func (h *ApplicationHandler) Reassign(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}

	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := h.appService.ReassignOwner(c.Request.Context(), middleware.GetActor(c), id, req.NewOwnerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, app.ToResponse())
}

// UpdateDetails edits the applicant payload
func (h *ApplicationHandler) UpdateDetails(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}

	var update services.DetailsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := h.appService.UpdateDetails(c.Request.Context(), middleware.GetActor(c), id, update)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, app.ToResponse())
}

type revealRequest struct {
	Field string `json:"field" binding:"required"`
}

// Reveal returns a raw identity number and records the access
func (h *ApplicationHandler) Reveal(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}

	var req revealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	value, err := h.appService.RevealField(c.Request.Context(), middleware.GetActor(c), id, req.Field)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"field": req.Field, "value": value})
}

// AuditLog returns the application's trail, newest first
func (h *ApplicationHandler) AuditLog(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}

	entries, err := h.appService.AuditLog(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		responses = append(responses, entries[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"audit_log": responses})
}

// Stats summarizes the queue for the dashboard
func (h *ApplicationHandler) Stats(c *gin.Context) {
	stats, err := h.appService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Export downloads the caller's visible queue as CSV or XLSX
func (h *ApplicationHandler) Export(c *gin.Context) {
	query := queueQuery(c)
	query.PerPage = 0 // exports are unpaginated
	actor := middleware.GetActor(c)

	var fields []string
	if raw := c.Query("fields"); raw != "" {
		fields = strings.Split(raw, ",")
	}

	var (
		data        []byte
		filename    string
		contentType string
		err         error
	)

	switch c.DefaultQuery("format", "csv") {
	case "xlsx":
		data, filename, err = h.exportService.ExportQueueXLSX(c.Request.Context(), actor, query, fields)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		data, filename, err = h.exportService.ExportQueueCSV(c.Request.Context(), actor, query, fields)
		contentType = "text/csv"
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, data)
}

// Certificate downloads the PDF certificate for an approved investment
func (h *ApplicationHandler) Certificate(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}

	data, filename, err := h.exportService.InvestmentCertificate(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/pdf", data)
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid application id"})
		return 0, err
	}
	return uint(id), nil
}
