package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/broker"
	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/display"
	"github.com/itohio/envmon/pkg/monitor"
	"github.com/itohio/envmon/pkg/panel"
)

// updateInterval caps panel redraws at ~60 FPS.
const updateInterval = 16 * time.Millisecond

type panelFlags struct {
	url      string
	interval time.Duration
	window   time.Duration
	mqtt     bool
}

func newPanelCmd(global *globalFlags) *cobra.Command {
	flags := &panelFlags{}

	cmd := &cobra.Command{
		Use:   "panel",
		Short: "Open the desktop status panel for a running monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, "envmon-panel")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if flags.url == "" {
				flags.url = localURL(cfg.HTTP.Addr)
			}
			return runPanel(cmd.Context(), cfg, global.configFile, flags, logger)
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", "", "Monitor base URL (default from http.addr)")
	cmd.Flags().DurationVar(&flags.interval, "interval", time.Second, "Polling interval")
	cmd.Flags().DurationVar(&flags.window, "window", 5*time.Minute, "Trend chart window")
	cmd.Flags().BoolVar(&flags.mqtt, "mqtt", false, "Follow the MQTT telemetry topic instead of polling")

	return cmd
}

// localURL turns a listen address such as ":8080" into a URL on this host.
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// panelState holds the desktop panel state.
type panelState struct {
	cfg        *config.Config
	configFile string
	logger     *zap.Logger

	poller  *display.Poller
	history *display.History

	window fyne.Window
	status *widget.Label
	trend  *panel.TrendWidget
	armBtn *widget.Button

	// Latest export and redraw throttling
	mu             sync.Mutex
	latest         monitor.Data
	lastUpdateTime time.Time
}

func runPanel(ctx context.Context, cfg *config.Config, configFile string, flags *panelFlags, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	application := app.NewWithID("com.itohio.envmon")
	window := application.NewWindow("Environment Monitor")
	window.Resize(fyne.NewSize(1000, 600))
	window.CenterOnScreen()

	state := &panelState{
		cfg:        cfg,
		configFile: configFile,
		logger:     logger,
		poller:     display.NewPoller(flags.url, flags.interval, logger),
		history:    display.NewHistory(flags.window),
		window:     window,
	}

	state.status = widget.NewLabel(strings.Join(display.Lines(monitor.Data{Time: "--:--:--"}), "\n"))
	state.status.TextStyle = fyne.TextStyle{Monospace: true}
	state.trend = panel.NewTrend(state.history)

	window.SetContent(container.NewBorder(
		createToolbar(ctx, state),
		nil,
		container.NewPadded(state.status),
		nil,
		state.trend,
	))

	if err := startFeed(ctx, state, flags); err != nil {
		return err
	}

	// Closing the window stops the feed.
	window.SetOnClosed(cancel)
	go func() {
		<-ctx.Done()
		fyne.Do(application.Quit)
	}()

	window.ShowAndRun()
	return nil
}

// startFeed starts delivering exports to the panel, from MQTT telemetry
// or by polling /data.
func startFeed(ctx context.Context, state *panelState, flags *panelFlags) error {
	if !flags.mqtt {
		go func() {
			_ = state.poller.Run(ctx, state.update)
		}()
		return nil
	}

	client, err := broker.New(&state.cfg.MQTT, state.logger)
	if err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	err = client.Subscribe(ctx, state.cfg.MQTT.TelemetryTopic, func(_ string, payload []byte) error {
		var d monitor.Data
		if err := json.Unmarshal(payload, &d); err != nil {
			return fmt.Errorf("decode telemetry: %w", err)
		}
		state.update(d)
		return nil
	})
	if err != nil {
		client.Close()
		return err
	}
	go func() {
		<-ctx.Done()
		client.Close()
	}()
	return nil
}

// update records d and schedules a redraw on the Fyne thread.
func (s *panelState) update(d monitor.Data) {
	s.history.Add(d)

	s.mu.Lock()
	s.latest = d
	now := time.Now()
	if now.Sub(s.lastUpdateTime) < updateInterval {
		s.mu.Unlock()
		return
	}
	s.lastUpdateTime = now
	s.mu.Unlock()

	fyne.Do(func() {
		s.status.SetText(strings.Join(display.Lines(d), "\n"))
		s.trend.Update()
		s.updateArmButton(d.AlarmEnabled)
	})
}

func (s *panelState) snapshot() monitor.Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// createToolbar creates the arm toggle and settings buttons.
func createToolbar(ctx context.Context, state *panelState) fyne.CanvasObject {
	state.armBtn = widget.NewButtonWithIcon("Arm", theme.MediaPlayIcon(), func() {
		handleArmToggle(ctx, state)
	})

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(ctx, state)
	})

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.armBtn, settingsBtn),
		nil,
		nil,
	)
}

func (s *panelState) updateArmButton(armed bool) {
	if armed {
		s.armBtn.SetText("Disarm")
		s.armBtn.SetIcon(theme.MediaStopIcon())
		return
	}
	s.armBtn.SetText("Arm")
	s.armBtn.SetIcon(theme.MediaPlayIcon())
}

// handleArmToggle flips the armed flag on the monitor. The button label
// follows the next export.
func handleArmToggle(ctx context.Context, state *panelState) {
	armed := !state.snapshot().AlarmEnabled
	go func() {
		if err := state.poller.SetArmed(ctx, armed); err != nil {
			fyne.Do(func() {
				dialog.ShowError(fmt.Errorf("failed to change alarm state: %w", err), state.window)
			})
			return
		}
		state.logger.Info("alarm toggled", zap.Bool("armed", armed))
	}()
}
