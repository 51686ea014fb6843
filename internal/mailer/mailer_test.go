package mailer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-chat/internal/config"
)

func TestNewWithoutHostFallsBackToLogSender(t *testing.T) {
	sender, err := New(config.SMTP{}, nil)
	require.NoError(t, err)
	require.IsType(t, LogSender{}, sender)

	require.NoError(t, sender.Send(context.Background(), "a@x.com", OTPSubject, "body"))
}

func TestNewWithHostBuildsSMTPSender(t *testing.T) {
	sender, err := New(config.SMTP{Host: "smtp.example.com", Port: 465, Username: "u", Password: "p", From: "no-reply@example.com"}, nil)
	require.NoError(t, err)
	require.IsType(t, &SMTPSender{}, sender)
}

func TestBuildMessageRejectsBadRecipient(t *testing.T) {
	_, err := buildMessage("no-reply@example.com", "not an address", "s", "b")
	require.Error(t, err)

	msg, err := buildMessage("no-reply@example.com", "a@x.com", "s", "b")
	require.NoError(t, err)
	require.NotNil(t, msg)
}

func TestOTPBody(t *testing.T) {
	assert.Equal(t, "Your verification code is 012345. It expires in 5 minutes.", OTPBody("012345", 5*time.Minute))
}
