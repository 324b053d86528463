package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/courier"
)

// serveArgs re-invokes the binary as the daemon's foreground process
func serveArgs() []string {
	return []string{"serve", "--config", cfgPath}
}

func newController() *courier.Controller {
	return courier.NewController(cfg.Courier.ControlDir, cfg.Courier.Addr)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Courier service in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := courier.NewRuntime(courier.RuntimeOptions{
			Addr:            cfg.Courier.Addr,
			MailboxRoot:     cfg.Courier.MailboxRoot,
			ControlDir:      cfg.Courier.ControlDir,
			RegistryPath:    cfg.Registry.Path,
			DebounceWindow:  cfg.Courier.DebounceWindow,
			DebounceMaxWait: cfg.Courier.DebounceMaxWait,
			LockTimeout:     cfg.Courier.LockTimeout,
			Bus:             bus.New(),
		})
		if err != nil {
			return err
		}

		fmt.Printf("✓ Courier listening on %s\n", cfg.Courier.Addr)
		return rt.Run(context.Background())
	},
}

var courierCmd = &cobra.Command{
	Use:   "courier",
	Short: "Manage the Courier daemon",
}

var courierStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Courier daemon in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newController().Start(false, serveArgs()); err != nil {
			return err
		}
		fmt.Printf("✓ Courier started on %s\n", cfg.Courier.Addr)
		return nil
	},
}

var courierStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Courier daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newController().Stop(true); err != nil {
			return err
		}
		fmt.Println("✓ Courier stopped")
		return nil
	},
}

var courierKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Kill the Courier daemon unconditionally",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newController().Kill(); err != nil {
			return err
		}
		fmt.Println("✓ Courier killed")
		return nil
	},
}

var courierRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the Courier daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if err := newController().Restart(force, serveArgs()); err != nil {
			return err
		}
		fmt.Println("✓ Courier restarted")
		return nil
	},
}

var courierStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the Courier daemon state",
	RunE: func(cmd *cobra.Command, args []string) error {
		state := newController().Status()
		fmt.Printf("Courier: %s\n", state)
		if state == courier.StateRunning {
			health, err := courier.NewClient(cfg.Courier.Addr).Health(cmd.Context())
			if err == nil {
				fmt.Printf("  Status:  %s\n", health.Status)
				fmt.Printf("  Version: %s\n", health.Version)
				fmt.Printf("  Uptime:  %s\n", health.Uptime)
			}
		}
		return nil
	},
}

func init() {
	courierRestartCmd.Flags().Bool("force", false, "kill instead of graceful stop")

	courierCmd.AddCommand(courierStartCmd)
	courierCmd.AddCommand(courierStopCmd)
	courierCmd.AddCommand(courierStatusCmd)
	courierCmd.AddCommand(courierRestartCmd)
	courierCmd.AddCommand(courierKillCmd)
}
