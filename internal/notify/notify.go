// Package notify delivers signal messages to chat destinations.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sender posts one text message
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Discord posts to a channel webhook.
type Discord struct {
	url    string
	client *http.Client
}

func NewDiscord(webhookURL string, client *http.Client) *Discord {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Discord{url: webhookURL, client: client}
}

func (d *Discord) Send(ctx context.Context, text string) error {
	if d.url == "" {
		return errors.New("discord: webhook url not set")
	}
	body, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook error %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// Multi sends to every destination and joins the failures.
type Multi []Sender

func (m Multi) Send(ctx context.Context, text string) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
