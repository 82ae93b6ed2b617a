package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <url>",
	Short: "Fetch a page and index it for retrieval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		if application.indexer == nil {
			return fmt.Errorf("indexing requires embedding_model to be configured")
		}
		if err := application.indexer.IndexURL(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Indexed %s.\n", args[0])
		return nil
	},
}
