package main

import (
	"os"

	"github.com/tempbottle/tidis/servercli"
)

func main() {
	if err := servercli.Execute(); err != nil {
		os.Exit(1)
	}
}
