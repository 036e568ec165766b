package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"aipreview/internal/models"
	contextutils "aipreview/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submissionRouter(t *testing.T, mock *MockWorkflowService, actor *models.ActorContext) *gin.Engine {
	t.Helper()
	handler := NewSubmissionHandler(mock, handlerTestConfig(), handlerTestLogger())
	return newHandlerRouter(t, actor, func(router *gin.Engine) {
		router.POST("/v1/submissions", handler.CreateDraft)
		router.GET("/v1/submissions", handler.ListSubmissions)
		router.GET("/v1/submissions/:id", handler.GetSubmission)
		router.DELETE("/v1/submissions/:id", handler.DeleteDraft)
		router.POST("/v1/submissions/:id/submit", handler.Submit)
		router.POST("/v1/submissions/:id/request-revision", handler.RequestRevision)
		router.POST("/v1/submissions/:id/publish", handler.Publish)
	})
}

func TestCreateDraftEndpoint(t *testing.T) {
	actor := officialActor(models.RoleBarangayOfficial, models.ScopeBarangay)
	sub := &models.Submission{ID: uuid.New(), Title: "AIP 2026", FiscalYear: 2026, Status: models.StatusDraft}
	mock := &MockWorkflowService{submission: sub}
	router := submissionRouter(t, mock, &actor)

	body, _ := json.Marshal(CreateDraftRequest{Title: "AIP 2026", FiscalYear: 2026})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, actor.ID, mock.lastActor.ID)

	var got models.Submission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, models.StatusDraft, got.Status)
}

func TestCreateDraftEndpointRejectsMissingFields(t *testing.T) {
	actor := officialActor(models.RoleBarangayOfficial, models.ScopeBarangay)
	router := submissionRouter(t, &MockWorkflowService{}, &actor)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/submissions", bytes.NewReader([]byte(`{"title":"no year"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")
}

func TestCreateDraftEndpointWithoutActor(t *testing.T) {
	router := submissionRouter(t, &MockWorkflowService{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/submissions", bytes.NewReader([]byte(`{"title":"x","fiscal_year":2026}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetSubmissionEndpoint(t *testing.T) {
	actor := officialActor(models.RoleCityOfficial, models.ScopeCity)
	sub := &models.Submission{ID: uuid.New(), Status: models.StatusUnderReview}
	mock := &MockWorkflowService{submission: sub}
	router := submissionRouter(t, mock, &actor)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/submissions/"+sub.ID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sub.ID, mock.lastID)
}

func TestGetSubmissionEndpointBadID(t *testing.T) {
	actor := officialActor(models.RoleCityOfficial, models.ScopeCity)
	router := submissionRouter(t, &MockWorkflowService{}, &actor)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/submissions/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSubmissionEndpointHidesUnpublishedFromCitizens(t *testing.T) {
	citizen := models.ActorContext{ID: uuid.New(), Role: models.RoleCitizen, Scope: models.Scope{Kind: models.ScopeNone}}
	sub := &models.Submission{ID: uuid.New(), Status: models.StatusUnderReview}
	router := submissionRouter(t, &MockWorkflowService{submission: sub}, &citizen)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/submissions/"+sub.ID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSubmissionsEndpoint(t *testing.T) {
	actor := officialActor(models.RoleCityOfficial, models.ScopeCity)
	mock := &MockWorkflowService{listed: []*models.Submission{
		{ID: uuid.New(), Status: models.StatusPendingReview},
		{ID: uuid.New(), Status: models.StatusPublished},
	}}
	router := submissionRouter(t, mock, &actor)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/submissions?status=pending_review,published&fiscal_year=2026", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	// Defaults to the actor's own scope.
	assert.Equal(t, actor.Scope, mock.lastScope)
	assert.Equal(t, 2026, mock.lastFilter.FiscalYear)
	assert.Equal(t, []models.SubmissionStatus{models.StatusPendingReview, models.StatusPublished}, mock.lastFilter.Statuses)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestListSubmissionsEndpointExplicitScope(t *testing.T) {
	actor := officialActor(models.RoleAdmin, models.ScopeNone)
	mock := &MockWorkflowService{}
	router := submissionRouter(t, mock, &actor)

	scopeID := uuid.New()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/submissions?scope_kind=barangay&scope_id="+scopeID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Scope{Kind: models.ScopeBarangay, ID: scopeID}, mock.lastScope)
}

func TestListSubmissionsEndpointCitizenForcedToPublished(t *testing.T) {
	citizen := models.ActorContext{ID: uuid.New(), Role: models.RoleCitizen, Scope: models.Scope{Kind: models.ScopeNone}}
	mock := &MockWorkflowService{}
	router := submissionRouter(t, mock, &citizen)

	scopeID := uuid.New()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/submissions?scope_kind=barangay&scope_id="+scopeID.String()+"&status=draft&include_archived=true", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.SubmissionStatus{models.StatusPublished}, mock.lastFilter.Statuses)
	assert.False(t, mock.lastFilter.IncludeArchived)
}

func TestSubmitEndpointCarriesRevisionReply(t *testing.T) {
	actor := officialActor(models.RoleBarangayOfficial, models.ScopeBarangay)
	sub := &models.Submission{ID: uuid.New(), Status: models.StatusPendingReview}
	mock := &MockWorkflowService{submission: sub}
	router := submissionRouter(t, mock, &actor)

	body, _ := json.Marshal(SubmitRequest{RevisionReply: "Budget tables corrected."})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/submissions/"+sub.ID.String()+"/submit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Budget tables corrected.", mock.lastNote)
}

func TestSubmitEndpointEmptyBodyAllowed(t *testing.T) {
	actor := officialActor(models.RoleBarangayOfficial, models.ScopeBarangay)
	sub := &models.Submission{ID: uuid.New(), Status: models.StatusPendingReview}
	mock := &MockWorkflowService{submission: sub}
	router := submissionRouter(t, mock, &actor)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/submissions/"+sub.ID.String()+"/submit", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mock.lastNote)
}

func TestRequestRevisionEndpointMapsServiceErrors(t *testing.T) {
	actor := officialActor(models.RoleCityOfficial, models.ScopeCity)
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", contextutils.WrapError(contextutils.ErrValidationFailed, "a revision note is required"), http.StatusBadRequest},
		{"jurisdiction", contextutils.WrapError(contextutils.ErrUnauthorized, "outside jurisdiction"), http.StatusUnauthorized},
		{"stale state", contextutils.WrapError(contextutils.ErrInvalidTransition, "submission is already published"), http.StatusConflict},
		{"missing", contextutils.WrapError(contextutils.ErrRecordNotFound, "no such submission"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockWorkflowService{err: tt.err}
			router := submissionRouter(t, mock, &actor)

			body, _ := json.Marshal(ReviewNoteRequest{Note: "fix it"})
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/v1/submissions/"+uuid.NewString()+"/request-revision", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestDeleteDraftEndpoint(t *testing.T) {
	actor := officialActor(models.RoleBarangayOfficial, models.ScopeBarangay)
	mock := &MockWorkflowService{}
	router := submissionRouter(t, mock, &actor)

	id := uuid.New()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/submissions/"+id.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, mock.lastID)
	assert.Contains(t, w.Body.String(), "deleted")
}
