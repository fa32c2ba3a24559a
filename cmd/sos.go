/*
Copyright © 2024 Airis-SH

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/airis-sh/airis/models"
	"github.com/airis-sh/airis/server"
	"github.com/spf13/cobra"
)

func createSosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sos",
		Short: "Send a test SOS alert to your emergency contacts",
		Long: `Runs the same alert path as an emergency raised by the device, using the
stored contacts and message template. Use --demo to log the alert instead
of calling and texting anyone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, store, err := openStore()
			if err != nil {
				return err
			}

			c, err := server.NewCoordinator(appCfg, store, isDemoEnv)
			if err != nil {
				return err
			}
			defer c.Close()

			status := c.HandleEmergency(context.Background(), models.MANUAL_TRIGGER)
			if status.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", red("✗"), status.Error)
				return formattedError("alert not sent: %s", status.Error)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", status.Name(), status.Outcome)
			return nil
		},
	}

	cmd.AddCommand(
		createSosToggleCmd("enable", true),
		createSosToggleCmd("disable", false),
	)

	return cmd
}

func createSosToggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("%s alerts for emergencies raised by the device", use),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}

			if err := store.SetSosEnabled(enabled); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s sos %sd\n", green("✓"), use)
			return nil
		},
	}
}
