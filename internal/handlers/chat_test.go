package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"church-portal/internal/chat"
	"church-portal/internal/middleware"
	"church-portal/internal/mocks"
	"church-portal/internal/models"
	"church-portal/internal/repositories"
)

const testSessionID = "0b6c7a52-5d1e-4a8e-8f0e-2f1d3c4b5a69"

func setupChatRouter(repo *mocks.SessionRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewChatHandler(chat.NewService(repo, nil, nil, nil))

	r := gin.New()
	r.POST("/chat/sessions", handler.StartSession)
	r.GET("/chat/sessions/:id", handler.GetSession)
	r.GET("/chat/sessions/:id/messages", handler.ListMessages)
	r.POST("/chat/sessions/:id/messages", handler.PostVisitorMessage)
	r.POST("/chat/sessions/:id/read", handler.MarkVisitorRead)
	r.POST("/chat/sessions/:id/close", handler.CloseSession)

	admin := r.Group("/admin/chat", func(c *gin.Context) {
		c.Set(middleware.AdminIDKey, "admin1")
		c.Set(middleware.AdminNameKey, "Pastor")
		c.Next()
	})
	admin.GET("/sessions", handler.ListQueue)
	admin.POST("/sessions/:id/join", handler.JoinSession)
	admin.POST("/sessions/:id/messages", handler.PostAdminMessage)
	admin.POST("/sessions/:id/read", handler.MarkAdminRead)
	admin.POST("/sessions/:id/close", handler.CloseSession)
	return r
}

func do(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStartSessionWithOpeningMessage(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)

	waiting := models.ChatSession{ID: testSessionID, VisitorName: "Asha", VisitorEmail: "asha@example.com", Status: models.StatusWaiting}
	updated := waiting
	updated.UnreadByAdmin = 1
	repo.On("CreateSession", mock.Anything, "Asha", "asha@example.com").Return(waiting, nil).Once()
	repo.On("AppendMessage", mock.Anything, testSessionID, models.SenderVisitor, "Asha", "hello").
		Return(models.ChatMessage{ID: "m-1", Message: "hello"}, updated, nil).Once()

	rec := do(router, http.MethodPost, "/chat/sessions", `{"visitor_name":"Asha","visitor_email":"asha@example.com","message":"hello"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Session models.ChatSession `json:"session"`
		Message models.ChatMessage `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Session.UnreadByAdmin)
	assert.Equal(t, "hello", resp.Message.Message)
	repo.AssertExpectations(t)
}

func TestStartSessionInvalidEmail(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)

	rec := do(router, http.MethodPost, "/chat/sessions", `{"visitor_name":"Asha","visitor_email":"nope"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartSessionBadJSON(t *testing.T) {
	router := setupChatRouter(new(mocks.SessionRepositoryMock))

	rec := do(router, http.MethodPost, "/chat/sessions", `{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)
	repo.On("GetSession", mock.Anything, testSessionID).Return(nil, repositories.ErrSessionNotFound).Once()

	rec := do(router, http.MethodGet, "/chat/sessions/"+testSessionID, "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	repo.AssertExpectations(t)
}

func TestGetSessionMalformedID(t *testing.T) {
	router := setupChatRouter(new(mocks.SessionRepositoryMock))

	rec := do(router, http.MethodGet, "/chat/sessions/42", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostVisitorMessageUsesVisitorName(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)

	session := models.ChatSession{ID: testSessionID, VisitorName: "Asha", Status: models.StatusActive}
	repo.On("GetSession", mock.Anything, testSessionID).Return(session, nil).Once()
	repo.On("AppendMessage", mock.Anything, testSessionID, models.SenderVisitor, "Asha", "thanks").
		Return(models.ChatMessage{ID: "m-2", Message: "thanks"}, session, nil).Once()

	rec := do(router, http.MethodPost, "/chat/sessions/"+testSessionID+"/messages", `{"message":"thanks"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	repo.AssertExpectations(t)
}

func TestPostMessageClosedSession(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)
	repo.On("AppendMessage", mock.Anything, testSessionID, models.SenderAdmin, "Pastor", "hello?").
		Return(nil, nil, repositories.ErrSessionStateChanged).Once()

	rec := do(router, http.MethodPost, "/admin/chat/sessions/"+testSessionID+"/messages", `{"message":"hello?"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	repo.AssertExpectations(t)
}

func TestJoinSessionConflict(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)

	other := "admin2"
	repo.On("ClaimSession", mock.Anything, testSessionID, "admin1", "Pastor").Return(nil, repositories.ErrSessionStateChanged).Once()
	repo.On("GetSession", mock.Anything, testSessionID).Return(models.ChatSession{ID: testSessionID, Status: models.StatusActive, AdminID: &other}, nil).Once()

	rec := do(router, http.MethodPost, "/admin/chat/sessions/"+testSessionID+"/join", "")

	require.Equal(t, http.StatusConflict, rec.Code)
	repo.AssertExpectations(t)
}

func TestJoinSessionSuccess(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)

	admin, name := "admin1", "Pastor"
	repo.On("ClaimSession", mock.Anything, testSessionID, "admin1", "Pastor").
		Return(models.ChatSession{ID: testSessionID, Status: models.StatusActive, AdminID: &admin, AdminName: &name}, nil).Once()

	rec := do(router, http.MethodPost, "/admin/chat/sessions/"+testSessionID+"/join", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"admin_name":"Pastor"`)
	repo.AssertExpectations(t)
}

func TestMarkAdminRead(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)
	repo.On("MarkRead", mock.Anything, testSessionID, models.SenderAdmin).
		Return(models.ChatSession{ID: testSessionID, Status: models.StatusActive}, nil).Once()

	rec := do(router, http.MethodPost, "/admin/chat/sessions/"+testSessionID+"/read", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unread_by_admin":0`)
	repo.AssertExpectations(t)
}

func TestCloseSessionTwice(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)
	repo.On("CloseSession", mock.Anything, testSessionID).Return(models.ChatSession{ID: testSessionID, Status: models.StatusClosed}, nil).Once()
	repo.On("CloseSession", mock.Anything, testSessionID).Return(nil, repositories.ErrSessionStateChanged).Once()

	rec := do(router, http.MethodPost, "/chat/sessions/"+testSessionID+"/close", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodPost, "/admin/chat/sessions/"+testSessionID+"/close", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	repo.AssertExpectations(t)
}

func TestListQueueUnavailable(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)
	repo.On("ListOpenSessions", mock.Anything).Return(nil, repositories.ErrStoreUnavailable).Once()

	rec := do(router, http.MethodGet, "/admin/chat/sessions", "")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	repo.AssertExpectations(t)
}

func TestListMessagesEmpty(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)
	repo.On("ListMessages", mock.Anything, testSessionID).Return(nil, nil).Once()

	rec := do(router, http.MethodGet, "/chat/sessions/"+testSessionID+"/messages", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
	repo.AssertExpectations(t)
}

func TestListQueueRepoError(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router := setupChatRouter(repo)
	repo.On("ListOpenSessions", mock.Anything).Return(nil, assert.AnError).Once()

	rec := do(router, http.MethodGet, "/admin/chat/sessions", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	repo.AssertExpectations(t)
}
