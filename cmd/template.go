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
	"fmt"
	"strings"

	"github.com/airis-sh/airis/utils"
	"github.com/spf13/cobra"
)

func createTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Read or change the emergency message sent to your contacts",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the current message template",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				_, store, err := openStore()
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), store.MessageTemplate())
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <message>",
			Short: "Replace the message template",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				message := strings.Join(args, " ")
				if utils.IsBlank(message) {
					return formattedError("message template can't be blank")
				}

				_, store, err := openStore()
				if err != nil {
					return err
				}

				if err := store.SetMessageTemplate(message); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s message template updated\n", green("✓"))
				return nil
			},
		},
	)

	return cmd
}
