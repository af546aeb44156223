package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itohio/envmon/pkg/sensor"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports for the sensor hub and GPS receiver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := sensor.Ports()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "no serial ports found")
				return nil
			}
			for _, p := range ports {
				if p.Description != "" && p.Description != p.Name {
					fmt.Fprintf(out, "%s (%s)\n", p.Name, p.Description)
					continue
				}
				fmt.Fprintln(out, p.Name)
			}
			return nil
		},
	}
}
