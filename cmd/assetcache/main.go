// Command assetcache installs, activates and serves a versioned asset cache
// for a static site.
package main

import (
	"fmt"
	"os"
)

func main() {
	a, err := newApp(os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := a.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
