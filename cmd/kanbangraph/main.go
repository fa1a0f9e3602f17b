package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hanpama/kanbangraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "kanbangraph:", err)
		os.Exit(1)
	}
}
