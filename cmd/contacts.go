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
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/airis-sh/airis/models"
	"github.com/airis-sh/airis/validation"
	"github.com/spf13/cobra"
)

func createContactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage your emergency contacts",
	}

	cmd.AddCommand(
		createContactsListCmd(),
		createContactsAddCmd(),
		createContactsRemoveCmd(),
		createContactsValidateCmd(),
	)

	return cmd
}

func createContactsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List emergency contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}

			contacts := store.Contacts()
			if len(contacts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no contacts yet, add one with 'airis contacts add'")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPHONE\tEMAIL")
			for _, contact := range contacts {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", contact.ID, contact.Name, contact.Phone, contact.Email)
			}

			return w.Flush()
		},
	}
}

func createContactsAddCmd() *cobra.Command {
	contact := models.Contact{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an emergency contact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if result := validation.ValidateContact(contact); !result.Valid {
				return formattedError("invalid contact: %s", strings.Join(result.Errors, ", "))
			}

			_, store, err := openStore()
			if err != nil {
				return err
			}

			if err := store.AddContact(&contact); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s added %v\n", green("✓"), contact)
			return nil
		},
	}

	contactFlags(cmd, &contact)
	return cmd
}

func createContactsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an emergency contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return formattedError("'%s' is not a contact id", args[0])
			}

			_, store, err := openStore()
			if err != nil {
				return err
			}

			if err := store.RemoveContact(id); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s removed contact %d\n", green("✓"), id)
			return nil
		},
	}
}

// createContactsValidateCmd checks a contact without touching the db
func createContactsValidateCmd() *cobra.Command {
	contact := models.Contact{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a contact before adding it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := validation.ValidateContact(contact)
			if result.Valid {
				fmt.Fprintln(cmd.OutOrStdout(), "valid")
				return nil
			}

			for _, msg := range result.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", red("✗"), msg)
			}
			return formattedError("contact is not valid")
		},
	}

	contactFlags(cmd, &contact)
	return cmd
}

func contactFlags(cmd *cobra.Command, contact *models.Contact) {
	cmd.Flags().StringVarP(&contact.Name, "name", "n", "", "contact name")
	cmd.Flags().StringVarP(&contact.Phone, "phone", "p", "", "phone number to call & text")
	cmd.Flags().StringVarP(&contact.Email, "email", "e", "", "email address")
}
