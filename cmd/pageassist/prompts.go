package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pageassist/internal/prompts"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage stored prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		list, err := application.prompts.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No prompts stored.")
			return nil
		}
		for _, p := range list {
			kind := "quick"
			if p.IsSystem {
				kind = "system"
			}
			fmt.Printf("%-36s %-7s %s\n", p.ID, kind, p.Title)
		}
		return nil
	},
}

var (
	promptTitle  string
	promptSystem bool
)

var promptsAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Store a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		saved, err := application.prompts.Save(prompts.Prompt{
			Title:    promptTitle,
			Content:  args[0],
			IsSystem: promptSystem,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Saved prompt %s.\n", saved.ID)
		return nil
	},
}

var promptsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a stored prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		return application.prompts.Delete(args[0])
	},
}

func init() {
	promptsAddCmd.Flags().StringVar(&promptTitle, "title", "", "prompt title")
	promptsAddCmd.Flags().BoolVar(&promptSystem, "system", false, "store as a system prompt")

	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsAddCmd)
	promptsCmd.AddCommand(promptsRemoveCmd)
}
