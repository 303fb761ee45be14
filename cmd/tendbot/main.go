package main

import (
	"os"

	"tendbot/cmd/tendbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
