package main

import (
	"os"

	"github.com/AlfredBerg/rod-route-tracker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
