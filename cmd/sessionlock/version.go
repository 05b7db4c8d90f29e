package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/sessionlock"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sessionlock",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sessionlock version %s\n", strings.TrimSpace(sessionlock.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
