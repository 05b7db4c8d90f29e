package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evict every expired session once",
	Long:  `Runs a single sweeper pass against the configured backend and exits. Suitable for cron.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSweep(cmd)
	},
}

func runSweep(cmd *cobra.Command) {
	svc, _ := openService(cmd)
	defer svc.Close()

	n, err := svc.Store.SweepExpired(cmd.Context())
	if err != nil {
		fmt.Printf("Error sweeping sessions: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Evicted %d expired session(s).\n", n)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create the lookup indexes of the backing collection",
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := openService(cmd)
		defer svc.Close()

		if err := svc.Collection.EnsureIndexes(cmd.Context()); err != nil {
			fmt.Printf("Error creating indexes: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Indexes ready on %s backend.\n", svc.Config.Backend)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(indexCmd)
}
