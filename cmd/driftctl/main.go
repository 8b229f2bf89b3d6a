package main

import (
	"os"

	"schema-drift-monitor/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
