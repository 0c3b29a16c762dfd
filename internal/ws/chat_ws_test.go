package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"church-portal/internal/chat"
	"church-portal/internal/middleware"
	"church-portal/internal/mocks"
	"church-portal/internal/models"
	"church-portal/internal/repositories"
)

const streamSessionID = "3d9b3c1e-8f5a-4b2e-9c7d-1a2b3c4d5e6f"

func setupStreamRouter(repo *mocks.SessionRepositoryMock) (*gin.Engine, *Hub) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	handler := NewStreamHandler(hub, chat.NewService(repo, hub, nil, nil), nil)

	r := gin.New()
	r.GET("/ws/admin/sessions", func(c *gin.Context) {
		c.Set(middleware.AdminIDKey, "pastor")
		c.Next()
	}, handler.HandleQueue)
	r.GET("/ws/chat/sessions/:id", handler.HandleSession)
	return r, hub
}

func TestHandleSessionUnknownSession(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router, _ := setupStreamRouter(repo)
	repo.On("GetSession", mock.Anything, streamSessionID).Return(nil, repositories.ErrSessionNotFound).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/chat/sessions/"+streamSessionID, nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	repo.AssertExpectations(t)
}

func TestHandleSessionStreamsSnapshot(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router, _ := setupStreamRouter(repo)
	srv := httptest.NewServer(router)
	defer srv.Close()

	session := models.ChatSession{ID: streamSessionID, VisitorEmail: "asha@example.com", Status: models.StatusActive, UnreadByVisitor: 1}
	repo.On("GetSession", mock.Anything, streamSessionID).Return(session, nil).Twice()
	repo.On("ListMessages", mock.Anything, streamSessionID).Return([]models.ChatMessage{
		{ID: "m-1", Message: "hello", SenderType: models.SenderVisitor},
		{ID: "m-2", Message: "welcome", SenderType: models.SenderAdmin},
	}, nil).Once()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/sessions/" + streamSessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	snapshot := readEvent(t, conn)
	assert.Equal(t, models.EventSnapshot, snapshot.Type)
	require.NotNil(t, snapshot.Session)
	assert.Equal(t, 1, snapshot.Session.UnreadByVisitor)
	require.Len(t, snapshot.Messages, 2)
	assert.Equal(t, "m-1", snapshot.Messages[0].ID)
	repo.AssertExpectations(t)
}

func TestHandleQueueStreamsSnapshotThenUpdates(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	router, hub := setupStreamRouter(repo)
	srv := httptest.NewServer(router)
	defer srv.Close()

	repo.On("ListOpenSessions", mock.Anything).Return([]models.ChatSession{{ID: streamSessionID, Status: models.StatusWaiting}}, nil).Once()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/admin/sessions"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	snapshot := readEvent(t, conn)
	assert.Equal(t, models.EventSnapshot, snapshot.Type)
	require.Len(t, snapshot.Sessions, 1)

	hub.Dispatch(models.ChatEvent{
		Type:      models.EventSession,
		SessionID: streamSessionID,
		Session:   &models.ChatSession{ID: streamSessionID, Status: models.StatusClosed},
	})

	event := readEvent(t, conn)
	assert.Equal(t, models.EventSession, event.Type)
	require.NotNil(t, event.Session)
	assert.Equal(t, models.StatusClosed, event.Session.Status)
	repo.AssertExpectations(t)
}
