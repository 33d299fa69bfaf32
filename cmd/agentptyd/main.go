// Command agentptyd is the daemon that exposes Session/Registry
// operations over a JSON-lines Unix domain socket, generalizing the
// teacher's create/write/resize/destroy/list/attach/detach protocol to
// the full session operation set.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agentpty/internal/ptyconfig"
	"agentpty/internal/ptylog"
)

const (
	socketName = "agentptyd.sock"
	pidName    = "agentptyd.pid"
	logName    = "agentptyd.log"
)

func socketDir(cfg ptyconfig.Config) string { return cfg.RootDir }
func socketPath(cfg ptyconfig.Config) string { return filepath.Join(socketDir(cfg), socketName) }
func pidPath(cfg ptyconfig.Config) string    { return filepath.Join(socketDir(cfg), pidName) }
func logPath(cfg ptyconfig.Config) string    { return filepath.Join(socketDir(cfg), logName) }

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "agentptyd",
		Short:         "Agent-facing PTY session daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")

	root.AddCommand(newStartCmd(&cfgPath))
	root.AddCommand(newStopCmd(&cfgPath))
	root.AddCommand(newRestartCmd(&cfgPath))
	root.AddCommand(newRunCmd(&cfgPath))
	root.AddCommand(newStatusCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cfgPath string) ptyconfig.Config {
	cfg, err := ptyconfig.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground (used internally by start)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*cfgPath)
			if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
				return err
			}
			logger := ptylog.NewDefault(logPath(cfg))
			runDaemon(cfg, logger)
			return nil
		},
	}
}

func newStartCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*cfgPath)
			if pid := readPid(cfg); pid != 0 {
				if processAlive(pid) {
					fmt.Printf("daemon already running (pid %d)\n", pid)
					return nil
				}
				os.Remove(pidPath(cfg))
			}
			os.Remove(socketPath(cfg))

			exePath, err := os.Executable()
			if err != nil {
				return err
			}
			args := []string{"run"}
			if *cfgPath != "" {
				args = append(args, "--config", *cfgPath)
			}
			proc, err := os.StartProcess(exePath, append([]string{exePath}, args...), &os.ProcAttr{
				Sys: &syscall.SysProcAttr{Setsid: true},
			})
			if err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}
			_ = proc.Release()

			for i := 0; i < 50; i++ {
				if _, err := os.Stat(socketPath(cfg)); err == nil {
					fmt.Printf("daemon started (pid %d)\n", readPid(cfg))
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}
			return fmt.Errorf("daemon started but socket not yet available")
		},
	}
}

func newStopCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*cfgPath)
			pid := readPid(cfg)
			if pid == 0 || !processAlive(pid) {
				fmt.Println("daemon not running")
				os.Remove(pidPath(cfg))
				os.Remove(socketPath(cfg))
				return nil
			}
			syscall.Kill(pid, syscall.SIGTERM)
			for i := 0; i < 50; i++ {
				if !processAlive(pid) {
					fmt.Printf("daemon stopped (was pid %d)\n", pid)
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}
			fmt.Fprintln(os.Stderr, "daemon did not stop within 5s, sending SIGKILL")
			syscall.Kill(pid, syscall.SIGKILL)
			time.Sleep(200 * time.Millisecond)
			os.Remove(pidPath(cfg))
			os.Remove(socketPath(cfg))
			return nil
		},
	}
}

func newRestartCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newStopCmd(cfgPath).RunE(cmd, args); err != nil {
				return err
			}
			return newStartCmd(cfgPath).RunE(cmd, args)
		},
	}
}

func newStatusCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*cfgPath)
			pid := readPid(cfg)
			if pid == 0 || !processAlive(pid) {
				fmt.Println("daemon is not running")
				os.Exit(1)
			}
			fmt.Printf("daemon is running (pid %d)\n", pid)
			return nil
		},
	}
}

func readPid(cfg ptyconfig.Config) int {
	data, err := os.ReadFile(pidPath(cfg))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0
	}
	return pid
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
