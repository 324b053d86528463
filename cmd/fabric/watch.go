package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/monoco-io/fabric/pkg/action"
	"github.com/monoco-io/fabric/pkg/artifact"
	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/router"
	"github.com/monoco-io/fabric/pkg/scheduler"
	"github.com/monoco-io/fabric/pkg/types"
	"github.com/monoco-io/fabric/pkg/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the workspace watchers and action router in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		b := bus.New()

		issues, err := watcher.NewIssueWatcher(watcher.Config{
			Path:         cfg.Watchers.IssueDir,
			Patterns:     []string{"*.md"},
			Recursive:    true,
			PollInterval: cfg.Watchers.PollInterval,
		}, b)
		if err != nil {
			return err
		}
		memos := watcher.NewMemoWatcher(watcher.Config{
			Path:         cfg.Watchers.MemoInbox,
			PollInterval: cfg.Watchers.PollInterval,
		}, b, cfg.Watchers.MemoThreshold)
		tasks := watcher.NewTaskWatcher(watcher.Config{
			Path:         cfg.Watchers.TaskFile,
			PollInterval: cfg.Watchers.PollInterval,
		}, b)

		sched := scheduler.NewLocal(cfg.Actions.MaxConcurrent, nil).WithBus(b)
		r := router.New(b)

		action.RegisterChannel(action.NewConsoleChannel("console"))
		r.Register([]types.EventType{types.EventIssueStageChanged},
			action.NewSpawnAgent(sched, "Engineer", cfg.Actions.MaxConcurrent),
			router.FieldEquals("new_value", "doing"), 10)
		r.Register([]types.EventType{types.EventMemoThreshold},
			action.NewSendNotification("console", "Memo inbox over threshold", "{pending_count} records pending"),
			nil, 5)
		if cfg.Actions.RepoDir != "" {
			r.Register([]types.EventType{types.EventSessionCompleted},
				action.NewChain("commit-and-push",
					action.NewGitCommit(cfg.Actions.RepoDir, "Apply changes from session {session_id}", nil).
						WithTimeout(cfg.Actions.CommandTimeout),
					action.NewGitPush(cfg.Actions.RepoDir, "", "", false).
						WithTimeout(cfg.Actions.CommandTimeout),
				), nil, 0)
		}

		mgr, err := openArtifactManager()
		if err != nil {
			return err
		}
		sweeper := artifact.NewSweeper(mgr, cfg.Store.SweepEvery)

		r.Start()
		issues.Start()
		memos.Start()
		tasks.Start()
		sweeper.Start()

		fmt.Println("✓ Watchers started")
		fmt.Printf("  Issues: %s\n", cfg.Watchers.IssueDir)
		fmt.Printf("  Memos:  %s (threshold %d)\n", cfg.Watchers.MemoInbox, cfg.Watchers.MemoThreshold)
		fmt.Printf("  Tasks:  %s\n", cfg.Watchers.TaskFile)
		fmt.Println("Press Ctrl+C to stop")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		sweeper.Stop()
		tasks.Stop()
		memos.Stop()
		issues.Stop()
		r.Stop()

		stats := sched.Stats()
		fmt.Printf("✓ Shutdown complete (%d sessions scheduled)\n", stats.Scheduled)
		return nil
	},
}
