package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Print the current application phase and countdown",
	RunE:  showPhase,
}

func showPhase(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	loader, err := loadProgram(cfg.Program.File)
	if err != nil {
		return err
	}

	deadlines := loader.Get().Deadlines
	now := time.Now()
	phase, remaining := deadlines.Countdown(now)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "program:   %s\n", loader.Get().Name)
	fmt.Fprintf(out, "phase:     %s\n", phase)
	if next, ok := deadlines.NextDeadline(phase); ok {
		fmt.Fprintf(out, "deadline:  %s\n", next.Format(time.RFC3339))
		fmt.Fprintf(out, "remaining: %s\n", remaining.Truncate(time.Second))
	}
	return nil
}
