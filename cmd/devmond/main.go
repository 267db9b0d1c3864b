package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"devmon/cmd"
	"devmon/cmd/devmond/serve"
)

func main() {
	// Secrets can be passed in through a .env file.
	_ = godotenv.Load()

	cmd.RootCmd.Use = "devmond"

	cmd.RootCmd.AddCommand(cmd.CommandVersion())
	cmd.RootCmd.AddCommand(serve.CommandServe())

	if err := cmd.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
