package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"church-portal/internal/mocks"
)

func TestPublishEventStampsOccurredAt(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	SetPublisher(publisher)
	t.Cleanup(func() { SetPublisher(nil) })

	publisher.On("Publish", mock.Anything, "ws_events.chat_queue", mock.MatchedBy(func(e EventEnvelope) bool {
		return e.EventName == "ws_connect" && e.OccurredAt != ""
	})).Return(nil).Once()

	require.NoError(t, PublishEvent(context.Background(), "ws_events.chat_queue", EventEnvelope{EventType: "ws_events", EventName: "ws_connect"}))
	publisher.AssertExpectations(t)
}

func TestPublishEventWithoutPublisher(t *testing.T) {
	SetPublisher(nil)
	assert.NoError(t, PublishEvent(context.Background(), "any", EventEnvelope{}))
}

func TestRequestHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	req.Header.Set("X-Device-Id", "kiosk-1")
	req.Header.Set(RequestIDHeader, "hdr-id")

	assert.Equal(t, "10.0.0.7", IPFromRequest(req))
	assert.Equal(t, "kiosk-1", DeviceIDFromRequest(req))
	assert.Equal(t, "hdr-id", RequestIDFromRequest(req))

	req = req.WithContext(ContextWithRequestID(req.Context(), "ctx-id"))
	assert.Equal(t, "ctx-id", RequestIDFromRequest(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", IPFromRequest(req))
}
