package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"aipreview/internal/models"
	"aipreview/internal/services"
	contextutils "aipreview/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedbackRouter(t *testing.T, mock *MockFeedbackService, actor *models.ActorContext) *gin.Engine {
	t.Helper()
	handler := NewFeedbackHandler(mock, handlerTestConfig(), handlerTestLogger())
	return newHandlerRouter(t, actor, func(router *gin.Engine) {
		router.GET("/v1/submissions/:id/revision-cycles", handler.GetRevisionCycles)
		router.GET("/v1/submissions/:id/feedback", handler.ListFeedback)
		router.POST("/v1/submissions/:id/feedback", handler.PostFeedback)
		router.GET("/v1/feedback/:id/thread", handler.GetThread)
		router.POST("/v1/feedback/:id/respond", handler.RespondToFeedback)
	})
}

func TestGetRevisionCyclesEndpoint(t *testing.T) {
	actor := officialActor(models.RoleBarangayOfficial, models.ScopeBarangay)
	mock := &MockFeedbackService{cycles: []services.RevisionCycle{
		{Number: 1}, {Number: 2},
	}}
	router := feedbackRouter(t, mock, &actor)

	id := uuid.New()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/submissions/"+id.String()+"/revision-cycles", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, mock.lastID)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestGetRevisionCyclesEndpointSinglePage(t *testing.T) {
	actor := officialActor(models.RoleBarangayOfficial, models.ScopeBarangay)
	mock := &MockFeedbackService{cycle: &services.RevisionCycle{Number: 2}, total: 3}
	router := feedbackRouter(t, mock, &actor)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/submissions/"+uuid.NewString()+"/revision-cycles?page=2", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, mock.lastPage)

	var resp struct {
		Cycle *services.RevisionCycle `json:"cycle"`
		Total int                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Cycle)
	assert.Equal(t, 2, resp.Cycle.Number)
	assert.Equal(t, 3, resp.Total)
}

func TestGetRevisionCyclesEndpointBadPage(t *testing.T) {
	actor := officialActor(models.RoleBarangayOfficial, models.ScopeBarangay)
	router := feedbackRouter(t, &MockFeedbackService{}, &actor)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/submissions/"+uuid.NewString()+"/revision-cycles?page=two", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListFeedbackEndpoint(t *testing.T) {
	actor := officialActor(models.RoleCityOfficial, models.ScopeCity)
	mock := &MockFeedbackService{records: []models.FeedbackRecord{
		{ID: uuid.New(), Kind: models.FeedbackQuestion},
	}}
	router := feedbackRouter(t, mock, &actor)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/submissions/"+uuid.NewString()+"/feedback", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestPostFeedbackEndpoint(t *testing.T) {
	citizen := models.ActorContext{ID: uuid.New(), Role: models.RoleCitizen, Scope: models.Scope{Kind: models.ScopeNone}}
	record := &models.FeedbackRecord{ID: uuid.New(), Kind: models.FeedbackConcern, Body: "Road budget looks doubled."}
	mock := &MockFeedbackService{record: record}
	router := feedbackRouter(t, mock, &citizen)

	id := uuid.New()
	body, _ := json.Marshal(PostFeedbackRequest{Kind: "concern", Body: "Road budget looks doubled."})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/submissions/"+id.String()+"/feedback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, id, mock.lastID)
	assert.Equal(t, models.FeedbackConcern, mock.lastKind)
	assert.Equal(t, "Road budget looks doubled.", mock.lastBody)
}

func TestPostFeedbackEndpointRejectsMissingBody(t *testing.T) {
	citizen := models.ActorContext{ID: uuid.New(), Role: models.RoleCitizen, Scope: models.Scope{Kind: models.ScopeNone}}
	router := feedbackRouter(t, &MockFeedbackService{}, &citizen)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/submissions/"+uuid.NewString()+"/feedback", bytes.NewReader([]byte(`{"kind":"concern"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostFeedbackEndpointForbiddenForOfficials(t *testing.T) {
	actor := officialActor(models.RoleCityOfficial, models.ScopeCity)
	mock := &MockFeedbackService{err: contextutils.WrapError(contextutils.ErrForbidden, "only citizens may post public feedback")}
	router := feedbackRouter(t, mock, &actor)

	body, _ := json.Marshal(PostFeedbackRequest{Kind: "question", Body: "why"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/submissions/"+uuid.NewString()+"/feedback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")
}

func TestGetThreadEndpoint(t *testing.T) {
	actor := officialActor(models.RoleBarangayOfficial, models.ScopeBarangay)
	rootID := uuid.New()
	mock := &MockFeedbackService{records: []models.FeedbackRecord{
		{ID: rootID, Kind: models.FeedbackQuestion},
		{ID: uuid.New(), ParentFeedbackID: &rootID, Kind: models.FeedbackOversightNote},
	}}
	router := feedbackRouter(t, mock, &actor)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/feedback/"+rootID.String()+"/thread", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rootID, mock.lastID)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestRespondToFeedbackEndpoint(t *testing.T) {
	actor := officialActor(models.RoleCityOfficial, models.ScopeCity)
	record := &models.FeedbackRecord{ID: uuid.New(), Kind: models.FeedbackOversightNote}
	mock := &MockFeedbackService{record: record}
	router := feedbackRouter(t, mock, &actor)

	parentID := uuid.New()
	body, _ := json.Marshal(RespondRequest{Body: "The figure covers two phases."})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/feedback/"+parentID.String()+"/respond", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, parentID, mock.lastID)
	assert.Equal(t, "The figure covers two phases.", mock.lastBody)
}

func TestRespondToFeedbackEndpointReplyAsRoot(t *testing.T) {
	actor := officialActor(models.RoleCityOfficial, models.ScopeCity)
	mock := &MockFeedbackService{err: contextutils.WrapError(contextutils.ErrValidationFailed, "record is a reply, not a thread root")}
	router := feedbackRouter(t, mock, &actor)

	body, _ := json.Marshal(RespondRequest{Body: "answer"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/feedback/"+uuid.NewString()+"/respond", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
