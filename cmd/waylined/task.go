package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/leebs0521/wayline-core/internal/database"
	"github.com/leebs0521/wayline-core/internal/types"
	"github.com/leebs0521/wayline-core/internal/wayline"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Flight task utilities",
}

var taskValidateCmd = &cobra.Command{
	Use:   "validate <definition.yaml>",
	Short: "Validate a task definition file",
	Long: `Checks a YAML task definition the same way the engine would
on submission: flight id syntax, file fingerprint format, and
task-type-specific configuration requirements.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := wayline.LoadTaskDefinition(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("OK: %s -> device %s (%s)\n",
			def.FlightID, def.DeviceSN, def.Config.TaskType)
		return nil
	},
}

var taskCodesCmd = &cobra.Command{
	Use:   "codes",
	Short: "List known device result codes and their classification",
	Run: func(cmd *cobra.Command, args []string) {
		codes := wayline.KnownCodes()
		sort.Ints(codes)
		for _, code := range codes {
			class := wayline.Classify(code)
			line := fmt.Sprintf("%6d  %-11s", code, class.Verdict)
			if status, terminal := class.TerminalStatus(); terminal {
				line += fmt.Sprintf("  -> %-14s", status)
			} else {
				line += fmt.Sprintf("      %-14s", "")
			}
			fmt.Printf("%s %s\n", line, class.Message)
		}
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live flight tasks from the task store",
	Long: `Reads the task database directly. Safe to run next to a
serving daemon: WAL mode allows concurrent readers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		tasks, err := database.NewTaskDAO(db).ListLive(cmd.Context())
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("no live tasks")
			return nil
		}
		for _, task := range tasks {
			fmt.Printf("%-32s %-20s %-12s %3d%%  %s\n",
				task.FlightID, task.DeviceSN, task.Status, task.Percent,
				task.Step.String())
		}
		return nil
	},
}

var taskGetCmd = &cobra.Command{
	Use:   "get <flight-id>",
	Short: "Show one flight task, live or historical",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		task, err := database.NewTaskDAO(db).Get(cmd.Context(), types.FlightID(args[0]))
		if err != nil {
			return err
		}

		fmt.Printf("flight_id:  %s\n", task.FlightID)
		fmt.Printf("device_sn:  %s\n", task.DeviceSN)
		fmt.Printf("status:     %s\n", task.Status)
		fmt.Printf("step:       %s\n", task.Step.String())
		fmt.Printf("percent:    %d\n", task.Percent)
		if task.Reason != "" {
			fmt.Printf("reason:     %s\n", task.Reason)
		}
		if bp := task.Breakpoint; bp != nil {
			fmt.Printf("breakpoint: wayline %d waypoint %d (%s, progress %.2f)\n",
				bp.WaylineID, bp.Index, bp.State, bp.Progress)
		}
		fmt.Printf("created:    %s\n", task.CreatedAt.Format("2006-01-02 15:04:05"))
		if task.CompletedAt != nil {
			fmt.Printf("completed:  %s\n", task.CompletedAt.Format("2006-01-02 15:04:05"))
		}

		history, err := database.NewTransitionDAO(db).History(cmd.Context(), task.FlightID)
		if err != nil {
			return err
		}
		if len(history) > 0 {
			fmt.Println("transitions:")
			for _, rec := range history {
				from := string(rec.From)
				if from == "" {
					from = "-"
				}
				fmt.Printf("  %s  %s -> %s  %s\n",
					rec.At.Format("15:04:05"), from, rec.To, rec.Reason)
			}
		}
		return nil
	},
}

func init() {
	taskCmd.AddCommand(taskValidateCmd)
	taskCmd.AddCommand(taskCodesCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskGetCmd)
}
