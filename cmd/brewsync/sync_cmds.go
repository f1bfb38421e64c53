package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brewlog/brewsync/internal/syncer"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay queued offline mutations against the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			status := a.monitor.ForceCheck()
			if !status.NetworkOnline {
				return fmt.Errorf("network is unreachable")
			}
			if !status.ServerOnline {
				return fmt.Errorf("backend is unreachable")
			}

			before, err := a.store.PendingCount()
			if err != nil {
				return err
			}
			if err := a.reconciler.Sync(cmd.Context()); err != nil {
				return err
			}
			after, err := a.store.PendingCount()
			if err != nil {
				return err
			}

			fmt.Printf("sync complete: %d replayed, %d still queued, %d dropped\n",
				before-after-a.reconciler.DroppedCount(), after, a.reconciler.DroppedCount())
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, session, and queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			status := a.monitor.ForceCheck()
			pending, err := a.store.PendingCount()
			if err != nil {
				return err
			}

			fmt.Printf("network:  %s\n", onlineWord(status.NetworkOnline))
			fmt.Printf("backend:  %s\n", onlineWord(status.ServerOnline))
			if a.tokens.LoggedIn() {
				fmt.Printf("session:  logged in as %s\n", a.tokens.Username())
			} else {
				fmt.Println("session:  logged out")
			}
			fmt.Printf("queue:    %d pending operation(s)\n", pending)
			fmt.Printf("recipes:  %d in local snapshot\n", len(a.reconciler.Recipes()))
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the connectivity monitor and auto-sync until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a.reconciler.Start(ctx)
			a.monitor.Start()

			go runRealtime(ctx, a)

			fmt.Println("watching for connectivity changes, ctrl-c to stop")
			<-ctx.Done()

			a.monitor.Stop()
			a.reconciler.Stop()
			return nil
		},
	}
}

func runRealtime(ctx context.Context, a *app) {
	if a.cfg.API.WSURL == "" {
		return
	}
	syncer.NewRealtime(a.cfg.API.WSURL, a.reconciler).Run(ctx)
}

func onlineWord(up bool) string {
	if up {
		return "online"
	}
	return "offline"
}
