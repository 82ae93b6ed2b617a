package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pageassist/internal/chat"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		sessions, err := application.history.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions stored.")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%-36s %-19s %s\n", s.ID, s.UpdatedAt.Format("2006-01-02 15:04:05"), s.Title)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		session, err := application.history.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, msg := range session.Messages {
			fmt.Printf("%s:\n%s\n\n", msg.Role, chat.RemoveReasoning(msg.Content))
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		return application.history.Delete(cmd.Context(), args[0])
	},
}

var sessionsBranchCmd = &cobra.Command{
	Use:   "branch <id> <message-index>",
	Short: "Fork a session at a message into a new session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		var index int
		if _, err := fmt.Sscanf(args[1], "%d", &index); err != nil {
			return fmt.Errorf("invalid message index %q", args[1])
		}
		branchID, err := application.orchestrator.CreateBranch(cmd.Context(), args[0], index)
		if err != nil {
			return err
		}
		fmt.Printf("Created branch %s.\n", branchID)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsBranchCmd)
}
