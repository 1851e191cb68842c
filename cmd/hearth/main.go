// Package main provides the hearth CLI: an interactive shell that creates,
// inspects, mutates, and destroys typed entities backed by a durable store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
	os.Exit(exitSuccess)
}
