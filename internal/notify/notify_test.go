package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-checkout/internal/notify"
)

func TestEmailClient_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"message":"Email sent successfully!"}`))
	}))
	defer srv.Close()

	client := notify.NewEmailClient(srv.URL, "key-123", srv.Client())
	err := client.Send(context.Background(), notify.Message{
		To:       "seller@example.com",
		Subject:  "Cancellation request for order #1001",
		FromName: "Storefront Orders",
		ReplyTo:  "buyer@example.com",
		Body:     "Reason: ordered twice",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"access_key": "key-123",
		"subject":    "Cancellation request for order #1001",
		"from_name":  "Storefront Orders",
		"replyto":    "buyer@example.com",
		"message":    "Reason: ordered twice",
		"email":      "seller@example.com",
	}, got)
}

func TestEmailClient_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"Invalid access key"}`))
	}))
	defer srv.Close()

	client := notify.NewEmailClient(srv.URL, "bad", srv.Client())
	err := client.Send(context.Background(), notify.Message{To: "seller@example.com"})
	assert.ErrorContains(t, err, "Invalid access key")
}

func TestEmailClient_UnreadableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte(`{"success"`))
	}))
	defer srv.Close()

	client := notify.NewEmailClient(srv.URL, "key-123", srv.Client())
	err := client.Send(context.Background(), notify.Message{To: "seller@example.com"})
	assert.ErrorContains(t, err, "failed to read email api response")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestEmailClient_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	client := notify.NewEmailClient(srv.URL, "key-123", srv.Client())
	err := client.Send(context.Background(), notify.Message{To: "seller@example.com"})
	assert.ErrorContains(t, err, "<html>maintenance</html>")

	var syntaxErr *json.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestEmailClient_NotConfigured(t *testing.T) {
	client := notify.NewEmailClient("", "", nil)
	err := client.Send(context.Background(), notify.Message{})
	assert.ErrorIs(t, err, notify.ErrNotConfigured)
}

func TestMailtoLink(t *testing.T) {
	link := notify.MailtoLink(notify.Message{
		To:      "seller@example.com",
		Subject: "Cancel order #1001",
		Body:    "Reason: wrong size & colour",
	})

	assert.Equal(t, "mailto:seller@example.com?body=Reason%3A%20wrong%20size%20%26%20colour&subject=Cancel%20order%20%231001", link)
}
