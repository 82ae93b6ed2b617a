package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pageassist/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Manage model providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		descs, err := application.providers.List()
		if err != nil {
			return err
		}
		if len(descs) == 0 {
			fmt.Println("No providers configured.")
			return nil
		}
		for _, desc := range descs {
			fmt.Printf("%-24s %-18s model=%s\n", desc.ID, desc.Kind, desc.Model)
		}
		return nil
	},
}

var (
	addKind      string
	addName      string
	addBaseURL   string
	addAPIKey    string
	addModel     string
	addProjectID string
	addLocation  string
)

var providersAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add or replace a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		desc := provider.Descriptor{
			ID:        args[0],
			Name:      addName,
			Kind:      provider.Kind(addKind),
			BaseURL:   addBaseURL,
			APIKey:    addAPIKey,
			Model:     addModel,
			ProjectID: addProjectID,
			Location:  addLocation,
		}
		if err := application.providers.Put(desc); err != nil {
			return err
		}
		fmt.Printf("Saved provider %s.\n", desc.ID)
		return nil
	},
}

var providersRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		return application.providers.Remove(args[0])
	},
}

func init() {
	providersAddCmd.Flags().StringVar(&addKind, "kind", "local", "provider kind (local, openai-compatible, sso-gateway)")
	providersAddCmd.Flags().StringVar(&addName, "name", "", "display name")
	providersAddCmd.Flags().StringVar(&addBaseURL, "base-url", "", "API base URL")
	providersAddCmd.Flags().StringVar(&addAPIKey, "api-key", "", "API key")
	providersAddCmd.Flags().StringVar(&addModel, "model", "", "model name")
	providersAddCmd.Flags().StringVar(&addProjectID, "project-id", "", "gateway project id")
	providersAddCmd.Flags().StringVar(&addLocation, "location", "", "gateway location")

	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersAddCmd)
	providersCmd.AddCommand(providersRemoveCmd)
}
