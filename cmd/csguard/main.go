package main

import (
	"os"

	"csguard/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
