package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/envmon/pkg/sensor"
)

// showSettingsDialog displays the threshold and sensor hub settings.
func showSettingsDialog(ctx context.Context, state *panelState) {
	tabs := container.NewAppTabs(
		createThresholdsTab(ctx, state),
		createHubTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(500, 360))
	d.Show()
}

// createThresholdsTab edits the live thresholds of the monitor. Only
// changed fields are sent.
func createThresholdsTab(ctx context.Context, state *panelState) *container.TabItem {
	latest := state.snapshot()

	gasEntry := widget.NewEntry()
	gasEntry.SetText(strconv.Itoa(latest.GasThreshold))

	dbEntry := widget.NewEntry()
	dbEntry.SetText(fmt.Sprintf("%.1f", latest.DBThreshold))

	corrEntry := widget.NewEntry()
	corrEntry.SetText(fmt.Sprintf("%.1f", latest.DBCorrection))

	initial := map[string]string{
		"threshold":    gasEntry.Text,
		"dbThreshold":  dbEntry.Text,
		"dbCorrection": corrEntry.Text,
	}

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Gas threshold (%)", Widget: gasEntry},
			{Text: "Noise threshold (dB)", Widget: dbEntry},
			{Text: "Noise correction (dB)", Widget: corrEntry},
		},
		OnSubmit: func() {
			changes := []struct{ param, value string }{
				{"threshold", gasEntry.Text},
				{"dbThreshold", dbEntry.Text},
				{"dbCorrection", corrEntry.Text},
			}
			go func() {
				var errs []error
				for _, c := range changes {
					if c.value == initial[c.param] {
						continue
					}
					if err := state.poller.SetThreshold(ctx, c.param, c.value); err != nil {
						errs = append(errs, err)
					}
				}
				if err := errors.Join(errs...); err != nil {
					fyne.Do(func() {
						dialog.ShowError(fmt.Errorf("failed to update thresholds: %w", err), state.window)
					})
				}
			}()
		},
	}

	return container.NewTabItem("Thresholds", form)
}

// createHubTab selects the sensor hub serial port stored in the
// configuration file. The monitor picks it up on its next start.
func createHubTab(state *panelState) *container.TabItem {
	ports, err := sensor.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	currentPort := state.cfg.Sensors.Hub.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Sensor hub port", Widget: portSelect},
		},
		OnSubmit: func() {
			if portSelect.Selected == "" {
				return
			}
			selected := portMap[portSelect.Selected]
			if selected == "" {
				selected = portSelect.Selected
			}
			state.cfg.Sensors.Hub.Port = selected
			if err := state.cfg.Save(state.configFile); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	return container.NewTabItem("Sensor Hub", form)
}
