// Command quotectl manages the quote store from the terminal. It opens the
// same durable storage as the service, so both see each other's writes.
package main

import (
	"fmt"
	"os"
)

// Version is injected via ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
