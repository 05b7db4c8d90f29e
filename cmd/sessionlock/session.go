package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/aretw0/sessionlock"
	"github.com/aretw0/sessionlock/internal/presentation/tui"
	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage session records",
	Long:  `List, inspect, create and remove session records in the configured backend.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List every session record, expired ones included",
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := openService(cmd)
		defer svc.Close()

		records, err := svc.Store.List(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing sessions: %v\n", err)
			os.Exit(1)
		}

		if ns, _ := cmd.Flags().GetString("namespace"); ns != "" {
			filtered := records[:0]
			for _, rec := range records {
				if rec.Namespace == ns {
					filtered = append(filtered, rec)
				}
			}
			records = filtered
		}
		sort.Slice(records, func(i, j int) bool {
			if records[i].Namespace != records[j].Namespace {
				return records[i].Namespace < records[j].Namespace
			}
			return records[i].ID < records[j].ID
		})

		printMarkdown(tui.RecordsTable(records, time.Now()))
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <namespace> <session-id>",
	Short: "Show the raw record of a session without touching its lock",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ns, id := args[0], args[1]
		svc, _ := openService(cmd)
		defer svc.Close()

		rec, err := svc.Collection.FindOne(cmd.Context(), domain.Key{ID: id, Namespace: ns})
		if err != nil {
			fmt.Printf("Error loading session '%s/%s': %v\n", ns, id, err)
			os.Exit(1)
		}

		now := time.Now()
		printMarkdown(tui.RecordDetail(rec, now))
		if tui.IsTerminal(os.Stdout) {
			fmt.Println(tui.ColorState(tui.State(rec, now)))
		}
	},
}

var sessionNewCmd = &cobra.Command{
	Use:   "new [session-id]",
	Short: "Create an uninitialized placeholder session",
	Long:  `Creates an empty placeholder record. A random id is generated when none is given.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := openService(cmd)
		defer svc.Close()

		id := uuid.NewString()
		if len(args) == 1 {
			id = args[0]
		}
		ns, _ := cmd.Flags().GetString("namespace")
		if ns == "" {
			ns = svc.Config.Namespace
		}
		timeout, _ := cmd.Flags().GetInt("timeout")

		if err := svc.Store.CreateUninitialized(cmd.Context(), id, ns, timeout); err != nil {
			fmt.Printf("Error creating session: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s/%s\n", ns, id)
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <namespace> <session-id> <lock-token>",
	Short: "Evict a session, only if it still carries the given lock token",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ns, id := args[0], args[1]
		token, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			fmt.Printf("Invalid lock token %q: %v\n", args[2], err)
			os.Exit(1)
		}

		svc, _ := openService(cmd)
		defer svc.Close()

		key := domain.Key{ID: id, Namespace: ns}
		removed, err := removeSession(cmd.Context(), svc, key, domain.LockToken(token))
		if err != nil {
			fmt.Printf("Error removing session '%s': %v\n", key, err)
			os.Exit(1)
		}
		if !removed {
			fmt.Printf("Session '%s' was not removed: lock token %d is stale.\n", key, token)
			os.Exit(1)
		}
		fmt.Printf("Session '%s' removed.\n", key)
	},
}

// removeSession evicts key under token and reports whether the record is gone.
// Evict is silent on a stale token, so the outcome is read back.
func removeSession(ctx context.Context, svc *sessionlock.Service, key domain.Key, token domain.LockToken) (bool, error) {
	if err := svc.Store.Evict(ctx, key.ID, key.Namespace, token); err != nil {
		return false, err
	}
	_, err := svc.Collection.FindOne(ctx, key)
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return true, nil
	case err != nil:
		return false, domain.Unavailable("verify", err)
	default:
		return false, nil
	}
}

var sessionFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Evict every expired session",
	Run: func(cmd *cobra.Command, args []string) {
		runSweep(cmd)
	},
}

func printMarkdown(md string) {
	if !tui.IsTerminal(os.Stdout) {
		fmt.Print(md)
		return
	}
	out, err := tui.NewRenderer()(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionCmd.AddCommand(sessionFlushCmd)

	sessionLsCmd.Flags().StringP("namespace", "n", "", "Only list sessions of this namespace")
	sessionNewCmd.Flags().StringP("namespace", "n", "", "Namespace (defaults to the configured namespace)")
	sessionNewCmd.Flags().IntP("timeout", "t", 0, "Idle timeout in minutes (defaults to default_timeout_minutes)")
}
