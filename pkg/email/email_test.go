package email

import (
	"context"
	"errors"
	"testing"

	"github.com/resend/resend-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

type fakeEmails struct {
	sent []*resend.SendEmailRequest
	err  error
}

func (f *fakeEmails) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.sent = append(f.sent, params)
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "email_1"}, nil
}

func TestResendSenderSend(t *testing.T) {
	api := &fakeEmails{}
	sender := &ResendSender{emails: api, from: "Shop <orders@example.com>"}

	err := sender.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Order SF-1", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	assert.Equal(t, "Shop <orders@example.com>", api.sent[0].From)
	assert.Equal(t, []string{"a@example.com"}, api.sent[0].To)
	assert.Equal(t, "<p>hi</p>", api.sent[0].Html)
}

func TestResendSenderWrapsProviderError(t *testing.T) {
	api := &fakeEmails{err: errors.New("rate limited")}
	sender := &ResendSender{emails: api, from: "x@example.com"}

	err := sender.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s", Text: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSendRejectsIncompleteMessages(t *testing.T) {
	sender := &LogSender{}
	assert.Error(t, sender.Send(context.Background(), Message{Subject: "s", Text: "t"}))
	assert.Error(t, sender.Send(context.Background(), Message{To: []string{"a@example.com"}, Text: "t"}))
	assert.Error(t, sender.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s"}))
	assert.NoError(t, sender.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s", Text: "t"}))
}

func TestNewSenderFallsBackToLogSender(t *testing.T) {
	sender, err := NewSender(context.Background(), config.EmailConfig{From: "x@example.com"}, nil)
	require.NoError(t, err)
	_, ok := sender.(*LogSender)
	assert.True(t, ok)

	sender, err = NewSender(context.Background(), config.EmailConfig{From: "x@example.com", APIKey: "re_123"}, nil)
	require.NoError(t, err)
	_, ok = sender.(*ResendSender)
	assert.True(t, ok)

	_, err = NewSender(context.Background(), config.EmailConfig{}, nil)
	assert.Error(t, err)
}
