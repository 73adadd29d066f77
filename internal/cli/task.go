package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/wallharvest/internal/models"
	"github.com/raphaelgruber/wallharvest/internal/service"
)

var (
	createGroups    []int64
	createPostLimit int
	createRun       bool
	runWatch        bool
	listLimit       int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, run and inspect collection tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a collection task",
	Long: `Create a collection task over the group catalog.

Without --groups the task covers every group in the catalog.

Examples:
  wallharvest task create                       # all groups
  wallharvest task create --groups 1,2,3 --run  # selected groups, run now`,
	Args: cobra.NoArgs,
	RunE: runTaskCreate,
}

var taskRunCmd = &cobra.Command{
	Use:   "run <task-id>",
	Short: "Run or resume a task in the foreground",
	Long: `Run a task until it completes. An interrupted task resumes from its last
checkpoint.

The first Ctrl+C asks the task to stop before its next group; a second one
aborts the current group. Either way the task stays resumable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTask(cmd.Context(), args[0])
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task and its checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showTask(cmd.Context(), args[0])
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listTasks(cmd.Context())
	},
}

var taskWatchCmd = &cobra.Command{
	Use:   "watch <task-id>",
	Short: "Follow the progress of a task run elsewhere",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunTaskProgress(args[0], dbClient.FindTask, nil)
	},
}

func init() {
	taskCreateCmd.Flags().Int64SliceVar(&createGroups, "groups", nil, "external ids of the groups to collect (default: all)")
	taskCreateCmd.Flags().IntVar(&createPostLimit, "post-limit", 0, "posts fetched per group (default: WALLHARVEST_POST_LIMIT)")
	taskCreateCmd.Flags().BoolVar(&createRun, "run", false, "run the task right away")
	taskRunCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "show a live progress bar")
	taskListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "number of tasks to list")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskRunCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskWatchCmd)
}

func runTaskCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	input := models.TaskInput{
		Scope:     models.ScopeAll,
		PostLimit: createPostLimit,
	}
	if input.PostLimit <= 0 {
		input.PostLimit = cfg.PostLimit
	}
	if len(createGroups) > 0 {
		input.Scope = models.ScopeSelected
		input.GroupIDs = models.DedupIDs(createGroups)
	}

	task, err := dbClient.CreateTask(ctx, input)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	taskID := task.TaskID()
	fmt.Printf("Created task %s (%s, %d posts per group)\n", taskID, task.Scope, task.PostLimit)

	if createRun {
		return runTask(ctx, taskID)
	}
	fmt.Printf("Run it with: wallharvest task run %s\n", taskID)
	return nil
}

// runTask executes a task in the background and waits for it, turning
// interrupts into cancellation requests.
func runTask(parent context.Context, taskID string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}

	ctx, abort := context.WithCancel(parent)
	defer abort()

	run, err := p.manager.Start(ctx, taskID)
	if err != nil {
		return fmt.Errorf("start task: %w", err)
	}

	if runWatch {
		// The progress UI owns the terminal; Ctrl+C there requests a stop.
		uiErr := RunTaskProgress(taskID, dbClient.FindTask, func() { p.manager.Cancel(taskID) })
		<-run.Done()
		if uiErr != nil {
			return uiErr
		}
		return reportRun(ctx, p, run)
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	interrupts := 0
	for {
		select {
		case <-run.Done():
			return reportRun(ctx, p, run)
		case <-sigs:
			interrupts++
			if interrupts == 1 {
				fmt.Fprintln(os.Stderr, "Stopping after the current group... (Ctrl+C again to abort it)")
				p.manager.Cancel(taskID)
				continue
			}
			fmt.Fprintln(os.Stderr, "Aborting current group")
			abort()
		}
	}
}

func reportRun(ctx context.Context, p *pipeline, run *service.Run) error {
	snap := run.Snapshot()
	if err := showTask(context.WithoutCancel(ctx), snap.TaskID); err != nil {
		return err
	}
	p.printTimings()
	if snap.Status == service.RunStatusFailed {
		return fmt.Errorf("task run failed: %s", snap.Error)
	}
	return nil
}

func showTask(ctx context.Context, id string) error {
	task, err := dbClient.FindTask(ctx, id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return fmt.Errorf("task not found: %s", id)
	}

	fmt.Printf("Task: %s\n", task.TaskID())
	fmt.Printf("  Scope: %s\n", task.Scope)
	if len(task.GroupIDs) > 0 {
		fmt.Printf("  Groups: %s\n", joinIDs(task.GroupIDs))
	}
	fmt.Printf("  Post limit: %d\n", task.PostLimit)
	fmt.Printf("  Status: %s\n", task.Status)
	fmt.Printf("  Progress: %.0f%%\n", task.Progress*100)
	fmt.Printf("  Created: %s\n", task.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Updated: %s\n", task.UpdatedAt.Format(time.RFC3339))
	if task.Error != nil && *task.Error != "" {
		fmt.Printf("  Error: %s\n", *task.Error)
	}

	cp := task.Checkpoint
	if cp == nil {
		return nil
	}

	processed := task.ProcessedItems
	if cp.ProcessedGroups != nil {
		processed = *cp.ProcessedGroups
	}
	fmt.Println("\nCheckpoint:")
	fmt.Printf("  Groups processed: %d/%d\n", processed, cp.TotalGroups)
	if cp.Stats != nil {
		fmt.Printf("  Groups: %d\n", cp.Stats.Groups)
		fmt.Printf("  Posts: %d\n", cp.Stats.Posts)
		fmt.Printf("  Comments: %d\n", cp.Stats.Comments)
		fmt.Printf("  Authors: %d\n", cp.Stats.Authors)
	}
	if cp.SkippedGroupsMessage != "" {
		fmt.Printf("  %s\n", cp.SkippedGroupsMessage)
	}
	if len(cp.FailedGroups) > 0 {
		fmt.Printf("\n  Failed groups (%d):\n", len(cp.FailedGroups))
		for _, fg := range cp.FailedGroups {
			fmt.Printf("    - %d %s: %s\n", fg.ExternalID, fg.Name, fg.Error)
		}
	}
	return nil
}

func listTasks(ctx context.Context) error {
	tasks, err := dbClient.ListTasks(ctx, listLimit)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	fmt.Printf("%-36s %-9s %-8s %-10s %s\n", "ID", "SCOPE", "STATUS", "PROGRESS", "CREATED")
	fmt.Println(strings.Repeat("-", 84))

	for i := range tasks {
		t := &tasks[i]
		progress := fmt.Sprintf("%.0f%%", t.Progress*100)
		if t.Checkpoint != nil && t.Checkpoint.TotalGroups > 0 {
			progress = fmt.Sprintf("%d/%d", t.ProcessedItems, t.Checkpoint.TotalGroups)
		}
		fmt.Printf("%-36s %-9s %-8s %-10s %s\n", t.TaskID(), t.Scope, t.Status, progress, t.CreatedAt.Format("2006-01-02 15:04"))
	}

	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
