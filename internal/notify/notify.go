package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNotConfigured = errors.New("email notifications are not configured")

type Message struct {
	To       string
	Subject  string
	FromName string
	ReplyTo  string
	Body     string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// EmailClient posts messages to a transactional-email form API.
type EmailClient struct {
	endpoint   string
	accessKey  string
	httpClient *http.Client
}

func NewEmailClient(endpoint, accessKey string, httpClient *http.Client) *EmailClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &EmailClient{endpoint: endpoint, accessKey: accessKey, httpClient: httpClient}
}

type emailRequest struct {
	AccessKey string `json:"access_key"`
	Subject   string `json:"subject"`
	FromName  string `json:"from_name"`
	ReplyTo   string `json:"replyto,omitempty"`
	Message   string `json:"message"`
	Email     string `json:"email"`
}

type emailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *EmailClient) Send(ctx context.Context, msg Message) error {
	if c.endpoint == "" || c.accessKey == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(emailRequest{
		AccessKey: c.accessKey,
		Subject:   msg.Subject,
		FromName:  msg.FromName,
		ReplyTo:   msg.ReplyTo,
		Message:   msg.Body,
		Email:     msg.To,
	})
	if err != nil {
		return fmt.Errorf("client: failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("client: failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: email api unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("client: failed to read email api response (status %d): %w", resp.StatusCode, err)
	}

	var decoded emailResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode >= 300 || decodeErr != nil || !decoded.Success {
		reason := decoded.Message
		if reason == "" {
			reason = strings.TrimSpace(string(raw))
		}
		if decodeErr != nil {
			return fmt.Errorf("client: email api rejected message (status %d): %s: %w", resp.StatusCode, reason, decodeErr)
		}
		return fmt.Errorf("client: email api rejected message (status %d): %s", resp.StatusCode, reason)
	}

	log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("client: email sent")
	return nil
}

// MailtoLink builds a mail-client deep link carrying the same message. It is
// the universal fallback when the email API cannot be used.
func MailtoLink(msg Message) string {
	query := url.Values{}
	query.Set("subject", msg.Subject)
	query.Set("body", msg.Body)
	// mailto expects %20 rather than '+' for spaces
	encoded := strings.ReplaceAll(query.Encode(), "+", "%20")
	return "mailto:" + msg.To + "?" + encoded
}
