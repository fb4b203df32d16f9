package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lecternlabs/marginalia/internal/cachekey"
)

var statsCmd = &cobra.Command{
	Use:   "stats [BOOK...]",
	Short: "Count cached answers per book",
	Long: `Count the cached answers held in the shared tier for one or more books.

Counts cover all readers and intents of each book. They say nothing about
the in-process tiers of running assistants.

Examples:
  marginalia stats gatsby
  marginalia stats gatsby mobydick middlemarch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	remote, err := newRemote(newLogger())
	if err != nil {
		return err
	}
	defer remote.Close()

	ctx := context.Background()

	width := 0
	for _, book := range args {
		if len(book) > width {
			width = len(book)
		}
	}

	total := 0
	for _, book := range args {
		count, err := remote.CountBook(ctx, cachekey.BookPrefix(book))
		if err != nil {
			return fmt.Errorf("counting book %s: %w", book, err)
		}
		total += count
		fmt.Printf("%-*s  %d\n", width, book, count)
	}

	if len(args) > 1 {
		fmt.Printf("%-*s  %d\n", width, "total", total)
	}
	return nil
}
