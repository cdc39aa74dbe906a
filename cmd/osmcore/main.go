package main

import (
	"fmt"
	"io"
	"os"

	"github.com/osmcore/osmcore/cmd/osmcore/command"
)

func main() {
	os.Exit(run(os.Args, os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	app := command.App()
	if err := app.Run(args); err != nil {
		fmt.Fprintf(stderr, "osmcore: %v\n", err)
		return 1
	}
	return 0
}
