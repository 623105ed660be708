package main

import (
	"context"
	"fmt"
)

// notifyDue runs one deadline sweep by hand, mainly for operators and cron
// fallbacks. Safe to run at any time: duplicate suppression is handled by the
// engine's ledger.
func (cli *commandLine) notifyDue() error {
	rep := cli.engine.RunSweep(context.Background())

	fmt.Fprintf(cli.out, "swept %d project(s) and %d task(s)\n", rep.ProjectsSeen, rep.TasksSeen)
	fmt.Fprintf(cli.out, "dispatched %d notification(s), suppressed %d duplicate(s)\n", rep.Dispatched, rep.Suppressed)
	for _, err := range rep.Errors {
		fmt.Fprintf(cli.out, "error: %v\n", err)
	}
	if len(rep.Errors) > 0 {
		return fmt.Errorf("sweep finished with %d error(s)", len(rep.Errors))
	}
	return nil
}
