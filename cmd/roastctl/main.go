package main

import (
	"context"
	"os"

	"roast-tracker/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
