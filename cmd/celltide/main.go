package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			// Interrupted runs resume from their last checkpoint.
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "celltide:", err)
		os.Exit(1)
	}
}
