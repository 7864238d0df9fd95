package main

import (
	"github.com/joho/godotenv"

	"github.com/careline/sos-beacon/cmd/sos-server/cmd"
)

func main() {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cmd.Execute()
}
