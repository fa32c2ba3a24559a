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
	"github.com/airis-sh/airis/server"
	"github.com/spf13/cobra"
)

func createMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Start the airis control center",
		Long: `Connects to the emergency device, keeps the link alive and alerts your
emergency contacts whenever the device raises an emergency. Also serves the
status API used by the caregiver screen. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := appConfig()
			if err != nil {
				return err
			}

			server.Start(appCfg, dataDir(), isDemoEnv)
			return nil
		},
	}
}
