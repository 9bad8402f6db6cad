package main

import (
	"os"

	"weave/internal/cliapp"
)

func main() {
	os.Exit(cliapp.Run(os.Args[1:]))
}
