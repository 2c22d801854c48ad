package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
	"github.com/noltfinance/nolt-ops-api/internal/services"
)

type mockAppRepo struct {
	repository.ApplicationRepository
	app     *models.Application
	entries []models.AuditEntry
}

func (m *mockAppRepo) FindByID(ctx context.Context, id uint) (*models.Application, error) {
	if m.app == nil || m.app.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *m.app
	return &copied, nil
}

func (m *mockAppRepo) FindByIDWithAuditLog(ctx context.Context, id uint) (*models.Application, error) {
	return m.FindByID(ctx, id)
}

func (m *mockAppRepo) UpdateWithExpectedStatus(ctx context.Context, app *models.Application, expectedStatus string, entry *models.AuditEntry) error {
	if m.app.Status != expectedStatus {
		return repository.ErrStaleRecord
	}
	copied := *app
	m.app = &copied
	m.entries = append(m.entries, *entry)
	return nil
}

func newTransitionContext(t *testing.T, role string, body map[string]interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	c.Request, _ = http.NewRequest("POST", "/applications/1/transitions", bytes.NewBuffer(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	c.Set("userID", uint(2))
	c.Set("userName", "Bisi Ade")
	c.Set("userRole", role)

	return c, w
}

func newTransitionHandler(app *models.Application) (*ApplicationHandler, *mockAppRepo) {
	repo := &mockAppRepo{app: app}
	svc := services.NewApplicationService(repo, nil, nil, nil, nil)
	return NewApplicationHandler(svc, nil), repo
}

func TestTransitionStatusCodes(t *testing.T) {
	// owned by the caller so the sales officer case exercises authorization,
	// not visibility
	owner := uint(2)
	pendingLoan := func() *models.Application {
		return &models.Application{
			ID:            1,
			ReferenceID:   "LN-1001",
			Type:          models.TypeLoan,
			Status:        models.StatusPendingReview,
			Amount:        "₦750,000",
			ApplicantName: "Ada Obi",
			OwnerID:       &owner,
		}
	}

	tests := []struct {
		name           string
		role           string
		body           map[string]interface{}
		expectedStatus int
	}{
		{
			name:           "missing action is a bad request",
			role:           models.RoleSalesManager,
			body:           map[string]interface{}{"comment": "no action given"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing expected status is a bad request",
			role:           models.RoleSalesManager,
			body:           map[string]interface{}{"action": "decline", "comment": "no snapshot"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unauthorized role is forbidden",
			role:           models.RoleSalesOfficer,
			body:           map[string]interface{}{"action": "decline", "expected_status": models.StatusPendingReview, "comment": "not my call"},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "stale expected status is a conflict",
			role:           models.RoleSalesManager,
			body:           map[string]interface{}{"action": "decline", "expected_status": models.StatusInternalAudit, "comment": "stale"},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "decline without comment is unprocessable",
			role:           models.RoleSalesManager,
			body:           map[string]interface{}{"action": "decline", "expected_status": models.StatusPendingReview},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "valid decline succeeds",
			role:           models.RoleSalesManager,
			body:           map[string]interface{}{"action": "decline", "expected_status": models.StatusPendingReview, "comment": "incomplete KYC"},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, repo := newTransitionHandler(pendingLoan())
			c, w := newTransitionContext(t, tt.role, tt.body)

			handler.Transition(c)
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				assert.Len(t, repo.entries, 1)
				assert.Equal(t, models.StatusDeclined, repo.app.Status)
			} else {
				assert.Empty(t, repo.entries)
			}
		})
	}
}

func TestTransitionUnknownApplicationIsNotFound(t *testing.T) {
	handler, _ := newTransitionHandler(nil)
	c, w := newTransitionContext(t, models.RoleSalesManager, map[string]interface{}{
		"action": "decline", "expected_status": models.StatusPendingReview, "comment": "nothing there",
	})

	handler.Transition(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRespondErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err            error
		expectedStatus int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrUnauthorized, http.StatusForbidden},
		{services.ErrConflict, http.StatusConflict},
		{services.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{services.ErrValidationFailed, http.StatusUnprocessableEntity},
		{services.ErrDuplicate, http.StatusUnprocessableEntity},
		{services.ErrInvalidPassword, http.StatusUnauthorized},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tt.err)
		assert.Equal(t, tt.expectedStatus, w.Code, tt.err.Error())
	}
}
