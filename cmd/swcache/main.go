// Package main provides the swcache CLI, which runs the storefront's
// offline-first cache layer as a caching proxy and manages its data.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
