package main

import (
	"os"

	"github.com/dshills/codemate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
