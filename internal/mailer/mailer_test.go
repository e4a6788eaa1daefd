package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWithoutHostLogsInsteadOfSending(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := New(Config{}, zap.New(core))

	require.IsType(t, &LogSender{}, sender)
	require.NoError(t, sender.Send(context.Background(), "alice@example.com", "Approval Required", "<p>hi</p>"))
	assert.Equal(t, 1, logs.FilterMessage("email skipped, smtp not configured").Len())

	assert.ErrorIs(t, sender.Send(context.Background(), "", "x", ""), ErrNoRecipient)
}

func TestNewWithHostUsesSMTP(t *testing.T) {
	sender := New(Config{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"}, zap.NewNop())
	assert.IsType(t, &SMTPSender{}, sender)
}

func TestTemplates(t *testing.T) {
	info := RequestInfo{Number: "REQ-00042", Title: "New <laptop>", RequesterName: "Rita", ActorName: "Bob", Step: 2}

	req := ApprovalRequired(info)
	assert.Equal(t, "Approval Required: REQ-00042 - New <laptop>", req.Subject)
	assert.Contains(t, req.HTML, "step 2")
	assert.Contains(t, req.HTML, "New &lt;laptop&gt;")

	assert.Equal(t, "Request Approved: REQ-00042 - New <laptop>", RequestApproved(info).Subject)
	assert.Contains(t, RequestRejected(info).HTML, "rejected by Bob")
}
