package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/wallharvest/internal/service"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume every pending or interrupted task",
	Long: `Resume all tasks left pending or running by a previous process.

Each task continues from its last checkpoint. Ctrl+C stops every task
before its next group; a second Ctrl+C aborts the groups in flight.`,
	Args: cobra.NoArgs,
	RunE: runResume,
}

func runResume(cmd *cobra.Command, _ []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}

	ctx, abort := context.WithCancel(cmd.Context())
	defer abort()

	started, err := p.manager.ResumeIncomplete(ctx)
	if err != nil {
		return err
	}
	if started == 0 {
		fmt.Println("No incomplete tasks")
		return nil
	}
	fmt.Printf("Resuming %d task(s)\n", started)

	done := make(chan struct{})
	go func() {
		p.manager.Wait()
		close(done)
	}()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	interrupts := 0
wait:
	for {
		select {
		case <-done:
			break wait
		case <-sigs:
			interrupts++
			if interrupts == 1 {
				fmt.Fprintln(os.Stderr, "Stopping tasks after their current group... (Ctrl+C again to abort)")
				for _, r := range p.manager.ListRuns() {
					p.manager.Cancel(r.TaskID)
				}
				continue
			}
			abort()
		}
	}

	failed := 0
	fmt.Printf("\n%-36s %-9s %s\n", "ID", "RUN", "ERROR")
	for _, r := range p.manager.ListRuns() {
		snap := r.Snapshot()
		if snap.Status == service.RunStatusFailed {
			failed++
		}
		fmt.Printf("%-36s %-9s %s\n", snap.TaskID, snap.Status, snap.Error)
	}
	p.printTimings()

	if failed > 0 {
		return fmt.Errorf("%d of %d task run(s) failed", failed, started)
	}
	return nil
}
