package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"realtime-chat/internal/models"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MailSenderMock struct {
	mock.Mock
}

func (m *MailSenderMock) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, base64Image string) (string, error) {
	args := m.Called(ctx, base64Image)
	return args.String(0), args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) NotifyNewMessage(msg models.Message) bool {
	args := m.Called(msg)
	return args.Bool(0)
}

func (m *NotifierMock) NotifyMessagesSeen(senderID string, receipt models.SeenReceipt) bool {
	args := m.Called(senderID, receipt)
	return args.Bool(0)
}

type AuditorMock struct {
	mock.Mock
}

func (m *AuditorMock) Emit(ctx context.Context, level, text string, userID *string) {
	m.Called(ctx, level, text, userID)
}
