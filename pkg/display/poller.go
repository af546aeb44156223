package display

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/logging"
	"github.com/itohio/envmon/pkg/monitor"
)

// Poller fetches /data from a running monitor and forwards panel commands.
// Polling consumes the timing pulse the same way the web dashboard does.
type Poller struct {
	client   *resty.Client
	interval time.Duration
	logger   *zap.Logger
}

// NewPoller creates a poller for the monitor at baseURL.
func NewPoller(baseURL string, interval time.Duration, logger *zap.Logger) *Poller {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(interval+time.Second).
		SetHeader("Accept", "application/json")

	return &Poller{
		client:   client,
		interval: interval,
		logger:   logging.OrNop(logger).Named("poller"),
	}
}

// Fetch returns one export.
func (p *Poller) Fetch(ctx context.Context) (monitor.Data, error) {
	var d monitor.Data
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&d).
		Get("/data")
	if err != nil {
		return monitor.Data{}, fmt.Errorf("fetch /data: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return monitor.Data{}, fmt.Errorf("fetch /data: status %d", resp.StatusCode())
	}
	return d, nil
}

// Run fetches every interval and passes each export to fn until ctx is
// done. Fetch errors are logged and polling continues.
func (p *Poller) Run(ctx context.Context, fn func(monitor.Data)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d, err := p.Fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("poll failed", zap.Error(err))
				}
				continue
			}
			fn(d)
		}
	}
}

// SetThreshold changes one threshold through /settings. param is one of
// threshold, dbThreshold or dbCorrection.
func (p *Poller) SetThreshold(ctx context.Context, param, value string) error {
	return p.command(ctx, "/settings", param, value)
}

// SetArmed arms or disarms the alarm through /alarm.
func (p *Poller) SetArmed(ctx context.Context, armed bool) error {
	state := "off"
	if armed {
		state = "on"
	}
	return p.command(ctx, "/alarm", "state", state)
}

func (p *Poller) command(ctx context.Context, path, param, value string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam(param, value).
		Get(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s: %s", path, strings.TrimSpace(resp.String()))
	}
	return nil
}
