// Package main provides the marginalia CLI for operating a shared response
// cache: warming it from corpora, querying it, and purging books.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
