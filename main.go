package main

import (
	"os"

	"github.com/fancyinnovations/fancyspaces-client/cmd"
	"github.com/fancyinnovations/fancyspaces-client/pkg/logger"
)

var version = "1.0.0"

func main() {
	if err := cmd.Execute(version); err != nil {
		logger.Fatalf("Error: %v", err)
		os.Exit(1)
	}
}
