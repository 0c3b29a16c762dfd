package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"church-portal/internal/models"
	"church-portal/internal/repositories"
)

type SessionRepositoryMock struct {
	mock.Mock
}

func (m *SessionRepositoryMock) CreateSession(ctx context.Context, visitorName, visitorEmail string) (models.ChatSession, error) {
	args := m.Called(ctx, visitorName, visitorEmail)
	return session(args.Get(0)), args.Error(1)
}

func (m *SessionRepositoryMock) GetSession(ctx context.Context, sessionID string) (models.ChatSession, error) {
	args := m.Called(ctx, sessionID)
	return session(args.Get(0)), args.Error(1)
}

func (m *SessionRepositoryMock) ListOpenSessions(ctx context.Context) ([]models.ChatSession, error) {
	args := m.Called(ctx)
	var list []models.ChatSession
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSession)
	}
	return list, args.Error(1)
}

func (m *SessionRepositoryMock) ClaimSession(ctx context.Context, sessionID, adminID, adminName string) (models.ChatSession, error) {
	args := m.Called(ctx, sessionID, adminID, adminName)
	return session(args.Get(0)), args.Error(1)
}

func (m *SessionRepositoryMock) AppendMessage(ctx context.Context, sessionID string, sender models.SenderType, senderName, text string) (models.ChatMessage, models.ChatSession, error) {
	args := m.Called(ctx, sessionID, sender, senderName, text)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, session(args.Get(1)), args.Error(2)
}

func (m *SessionRepositoryMock) MarkRead(ctx context.Context, sessionID string, reader models.SenderType) (models.ChatSession, error) {
	args := m.Called(ctx, sessionID, reader)
	return session(args.Get(0)), args.Error(1)
}

func (m *SessionRepositoryMock) CloseSession(ctx context.Context, sessionID string) (models.ChatSession, error) {
	args := m.Called(ctx, sessionID)
	return session(args.Get(0)), args.Error(1)
}

func (m *SessionRepositoryMock) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, sessionID)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func session(val any) models.ChatSession {
	if val == nil {
		return models.ChatSession{}
	}
	return val.(models.ChatSession)
}

type MemberRepositoryMock struct {
	mock.Mock
}

func (m *MemberRepositoryMock) ListMembers(ctx context.Context) ([]models.Member, error) {
	args := m.Called(ctx)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

type EventRepositoryMock struct {
	mock.Mock
}

func (m *EventRepositoryMock) ListEventsBetween(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	args := m.Called(ctx, from, to)
	var events []models.Event
	if val := args.Get(0); val != nil {
		events = val.([]models.Event)
	}
	return events, args.Error(1)
}

// BroadcasterMock records chat events handed to the push layer.
type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Publish(ctx context.Context, event models.ChatEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// PublisherMock stands in for the AMQP publisher behind audit and ws events.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}

var _ repositories.SessionRepository = (*SessionRepositoryMock)(nil)
var _ repositories.MemberRepository = (*MemberRepositoryMock)(nil)
var _ repositories.EventRepository = (*EventRepositoryMock)(nil)
