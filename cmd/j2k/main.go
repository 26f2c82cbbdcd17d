package main

import (
	"os"

	"j2k/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
