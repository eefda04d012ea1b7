package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/zdbackup/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "zdbackup: %v\n", err)
		os.Exit(1)
	}
}
