package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lecternlabs/marginalia/internal/cachekey"
)

var purgeCmd = &cobra.Command{
	Use:   "purge [BOOK]",
	Short: "Drop every cached answer for a book",
	Long: `Remove all cached answers for a book from the shared tier, across all
readers and intents. Use this when a book's content changes, for example
after a re-upload or a new edition.

In-process tiers of running assistants are not reachable from here; their
copies age out by TTL.

Examples:
  marginalia purge gatsby`,
	Args: cobra.ExactArgs(1),
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	book := strings.TrimSpace(args[0])
	if book == "" {
		return fmt.Errorf("book ID must not be empty")
	}

	remote, err := newRemote(newLogger())
	if err != nil {
		return err
	}
	defer remote.Close()

	ctx := context.Background()
	prefix := cachekey.BookPrefix(book)

	removed, err := remote.DeleteBook(ctx, prefix)
	if err != nil {
		return fmt.Errorf("purging book %s: %w", book, err)
	}

	fmt.Printf("Removed %d cached answers for book %s\n", removed, book)
	return nil
}
