package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lecternlabs/marginalia"
)

var queryCmd = &cobra.Command{
	Use:   "query [QUERY]",
	Short: "Look up a question in the cache",
	Long: `Check whether a question already has a cached answer, without calling
any generator.

The user, book and visibility must match how the answer was cached: private
books are cached per reader, public books are shared.

Examples:
  # A reader's private book
  marginalia query --book gatsby --user u-123 "Who is Nick Carraway?"

  # A public-domain book, shared across readers
  marginalia query --book mobydick --public "Who is Ishmael?"

  # A translation of a selected passage
  marginalia query --book mobydick --public --intent translate \
    --selection "Call me Ishmael" "Translate this to Spanish"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var (
	queryUser      string
	queryBook      string
	queryPublic    bool
	queryIntent    string
	querySelection string
	queryChapter   int
	outputJSON     bool
	showTiming     bool
)

func init() {
	queryCmd.Flags().StringVarP(&queryUser, "user", "u", "", "requesting reader ID")
	queryCmd.Flags().StringVarP(&queryBook, "book", "b", "", "book ID")
	queryCmd.Flags().BoolVar(&queryPublic, "public", false, "the book is public domain")
	queryCmd.Flags().StringVar(&queryIntent, "intent", "chat", "question intent: chat, knowledge, translate")
	queryCmd.Flags().StringVar(&querySelection, "selection", "", "selected passage the question refers to")
	queryCmd.Flags().IntVar(&queryChapter, "chapter", 0, "chapter the reader is in")
	queryCmd.Flags().BoolVar(&outputJSON, "json", false, "output result as JSON")
	queryCmd.Flags().BoolVar(&showTiming, "timing", false, "show lookup timing")
	queryCmd.MarkFlagRequired("book")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cache, err := newCache(newLogger())
	if err != nil {
		return err
	}
	defer cache.Close()

	req := marginalia.Request{
		UserID:    queryUser,
		BookID:    queryBook,
		Public:    queryPublic,
		Intent:    marginalia.ParseIntent(queryIntent),
		Query:     args[0],
		Selection: querySelection,
		Chapter:   queryChapter,
	}

	ctx := context.Background()
	start := time.Now()
	res, err := cache.Get(ctx, req)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}
	elapsed := time.Since(start)

	if !res.Hit {
		return fmt.Errorf("no cached answer for this question")
	}

	if outputJSON {
		return printResultJSON(res, elapsed)
	}
	printResultText(res, elapsed)
	return nil
}

func printResultText(res marginalia.Result, elapsed time.Duration) {
	fmt.Printf("Tier:   %s\n", res.Tier)
	if res.Tier == marginalia.TierSemantic {
		fmt.Printf("Score:  %.2f\n", res.Score)
	}
	fmt.Printf("Answer: %s\n", res.Answer.Content)
	if res.Answer.TokensUsed > 0 {
		fmt.Printf("Tokens: %d\n", res.Answer.TokensUsed)
	}
	if showTiming {
		fmt.Printf("Time:   %s\n", elapsed)
	}
}

func printResultJSON(res marginalia.Result, elapsed time.Duration) error {
	out := struct {
		Tier      string  `json:"tier"`
		Score     float64 `json:"score,omitempty"`
		Answer    string  `json:"answer"`
		Tokens    int     `json:"tokensUsed,omitempty"`
		ElapsedMs int64   `json:"elapsedMs,omitempty"`
	}{
		Tier:   string(res.Tier),
		Score:  res.Score,
		Answer: res.Answer.Content,
		Tokens: res.Answer.TokensUsed,
	}
	if showTiming {
		out.ElapsedMs = elapsed.Milliseconds()
	}

	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
