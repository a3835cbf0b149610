// Command deskautomata is the CLI entry point: capture ingestion, workflow
// extraction/refinement, reproducibility reporting, and autonomous/workflow
// replay (§6).
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/kazuyaegusa/deskautomata/internal/cli"
	"github.com/kazuyaegusa/deskautomata/internal/commands/learn"
	"github.com/kazuyaegusa/deskautomata/internal/commands/list"
	"github.com/kazuyaegusa/deskautomata/internal/commands/play"
	"github.com/kazuyaegusa/deskautomata/internal/commands/report"
	"github.com/kazuyaegusa/deskautomata/internal/commands/run"
	"github.com/kazuyaegusa/deskautomata/internal/commands/stats"
	"github.com/kazuyaegusa/deskautomata/internal/commands/watch"
	"github.com/kazuyaegusa/deskautomata/internal/config"
)

// daemonChildEnv marks a process as the detached child spawned for
// `watch --background`, so it does not try to detach itself again.
const daemonChildEnv = "DESKAUTOMATA_DAEMON_CHILD"

func main() {
	if os.Getenv(daemonChildEnv) != "1" && wantsBackgroundWatch(os.Args[1:]) {
		if err := spawnBackgroundWatch(); err != nil {
			fmt.Fprintln(os.Stderr, "Error: failed to start background daemon:", err)
			os.Exit(1)
		}
		fmt.Println("continuous learner daemon started in the background")
		return
	}

	rootCmd := cli.NewRootCommand()
	rootCmd.AddCommand(learn.NewLearnCommand())
	rootCmd.AddCommand(list.NewListCommand())
	rootCmd.AddCommand(run.NewRunCommand())
	rootCmd.AddCommand(play.NewPlayCommand())
	rootCmd.AddCommand(watch.NewWatchCommand())
	rootCmd.AddCommand(report.NewReportCommand())
	rootCmd.AddCommand(stats.NewStatsCommand())

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}

// wantsBackgroundWatch reports whether args invoke `watch --background`,
// checked before cobra parsing the same way the teacher's main.go scans for
// --controller-child ahead of its own cobra setup.
func wantsBackgroundWatch(args []string) bool {
	var sawWatch, sawBackground bool
	for _, a := range args {
		if a == "watch" {
			sawWatch = true
		}
		if a == watch.BackgroundFlagName {
			sawBackground = true
		}
	}
	return sawWatch && sawBackground
}

// spawnBackgroundWatch re-execs this binary as a detached `watch` child,
// redirecting stdio to a log file under the XDG state directory.
func spawnBackgroundWatch() error {
	self, err := os.Executable()
	if err != nil {
		return err
	}

	stateDir, err := config.StateDir()
	if err != nil {
		return err
	}
	logPath := filepath.Join(stateDir, "daemon.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()

	var childArgs []string
	for _, a := range os.Args[1:] {
		if a != watch.BackgroundFlagName {
			childArgs = append(childArgs, a)
		}
	}
	cmd := exec.Command(self, childArgs...)
	cmd.Env = append(os.Environ(), daemonChildEnv+"=1")
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	return cmd.Start()
}
