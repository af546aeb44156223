package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/itohio/envmon/pkg/config"
)

// ErrRejected is returned when the remote service does not answer 200.
var ErrRejected = errors.New("alert rejected")

// Pushover posts alerts to the Pushover messages API.
type Pushover struct {
	client *resty.Client
	url    string
	token  string
	user   string
}

// NewPushover creates a Pushover sender. Retries are left to the alarm
// cycle, so the HTTP client makes a single attempt.
func NewPushover(cfg *config.PushoverConfig) *Pushover {
	client := resty.New().
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Pushover{
		client: client,
		url:    cfg.URL,
		token:  cfg.Token,
		user:   cfg.User,
	}
}

// Send posts msg as a form. Only HTTP 200 counts as delivered.
func (p *Pushover) Send(ctx context.Context, msg string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"token":   p.token,
			"user":    p.user,
			"message": msg,
		}).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("pushover: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("pushover: %w: status %d", ErrRejected, resp.StatusCode())
	}
	return nil
}
