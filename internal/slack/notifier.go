package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const chatDeleteURL = "https://slack.com/api/chat.delete"

// Notifier posts out-of-band messages to caller-supplied response URLs.
// Delivery is best-effort: a failed POST is reported to the caller for
// logging, but never retried here.
type Notifier struct {
	client *http.Client
	token  string
}

// NewNotifier builds a Notifier whose outbound POSTs are bounded by timeout,
// so a slow callback endpoint cannot hang a worker. token is the Slack API
// access token used for chat.delete calls; it may be empty if the url_button
// flow is unused.
func NewNotifier(timeout time.Duration, token string) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: timeout},
		token:  token,
	}
}

// Notify sends a single JSON POST of msg to responseURL.
func (n *Notifier) Notify(ctx context.Context, responseURL string, msg Message) error {
	return n.post(ctx, responseURL, msg)
}

// DeleteOriginal asks Slack to remove the message that carried the
// interactive prompt, used when a user dismisses it.
func (n *Notifier) DeleteOriginal(ctx context.Context, responseURL string) error {
	return n.post(ctx, responseURL, Message{DeleteOriginal: true})
}

// DeleteMessage removes a posted message through the Slack Web API. Unlike
// response_url deliveries this requires the bot access token.
func (n *Notifier) DeleteMessage(ctx context.Context, channelID, messageTS string) error {
	form := url.Values{}
	form.Set("token", n.token)
	form.Set("channel", channelID)
	form.Set("ts", messageTS)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, chatDeleteURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat.delete returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) post(ctx context.Context, responseURL string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("response_url returned status %d", resp.StatusCode)
	}

	slog.DebugContext(ctx, "notification delivered", "status", resp.StatusCode)
	return nil
}
