package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new cron entry",
		Long: `Create a new cron entry, either from flags or via an interactive wizard
(--interactive). The entry's trigger args (--arg key=value, repeatable) are
interpreted by the chosen --type: interval uses interval/after (seconds),
datetime uses second/minute/hour/mday/month/year/weekday range strings, and
event uses topic/nth/after/min_interval.

Examples:
  fluxcron create --command "/bin/true" --type interval --arg interval=60
  fluxcron create --interactive`,
		Args: cobra.NoArgs,
		RunE: runCreate,
	}

	cmd.Flags().Bool("interactive", false, "walk through an interactive wizard instead of flags")
	cmd.Flags().String("name", "", "human-readable entry name")
	cmd.Flags().String("command", "", "shell command to run")
	cmd.Flags().String("cwd", "", "working directory (defaults to the server's cwd)")
	cmd.Flags().StringSlice("env", nil, "environment variables, KEY=VALUE (repeatable)")
	cmd.Flags().Int("rank", 0, "rank recorded on each dispatched task")
	cmd.Flags().Int64("repeat", 0, "number of times to run before stopping (0 = unlimited)")
	cmd.Flags().Int64("stop-on-failure", 0, "stop the trigger after N failed tasks since its last start (0 = never)")
	cmd.Flags().Float64("timeout", 0, "per-task timeout in seconds (0 = none)")
	cmd.Flags().Int("history", 5, "number of finished tasks to retain per entry")
	cmd.Flags().String("type", "interval", "trigger type: interval, datetime, or event")
	cmd.Flags().StringSlice("arg", nil, "trigger argument, key=value (repeatable)")
	cmd.Flags().Bool("stopped", false, "create the entry without arming its trigger")
	return cmd
}

func runCreate(cmd *cobra.Command, _ []string) error {
	interactive, _ := cmd.Flags().GetBool("interactive")
	if interactive {
		return runCreateWizard(cmd)
	}

	name, _ := cmd.Flags().GetString("name")
	command, _ := cmd.Flags().GetString("command")
	if command == "" {
		return fmt.Errorf("--command is required (or use --interactive)")
	}
	cwd, _ := cmd.Flags().GetString("cwd")
	env, _ := cmd.Flags().GetStringSlice("env")
	rank, _ := cmd.Flags().GetInt("rank")
	repeat, _ := cmd.Flags().GetInt64("repeat")
	stopOnFailure, _ := cmd.Flags().GetInt64("stop-on-failure")
	timeout, _ := cmd.Flags().GetFloat64("timeout")
	history, _ := cmd.Flags().GetInt("history")
	typeName, _ := cmd.Flags().GetString("type")
	argFlags, _ := cmd.Flags().GetStringSlice("arg")
	stopped, _ := cmd.Flags().GetBool("stopped")

	args, err := parseTriggerArgs(argFlags)
	if err != nil {
		return err
	}

	return submitEntry(cmd, createEntryBody{
		Name:             name,
		Command:          command,
		Cwd:              cwd,
		Env:              env,
		Rank:             rank,
		Repeat:           repeat,
		StopOnFailure:    stopOnFailure,
		TimeoutSeconds:   timeout,
		TaskHistoryCount: history,
		Type:             typeName,
		Args:             args,
		Stopped:          stopped,
	})
}

// createEntryBody mirrors the gateway's POST /api/entries request shape.
type createEntryBody struct {
	Name             string         `json:"name"`
	Command          string         `json:"command"`
	Cwd              string         `json:"cwd"`
	Env              []string       `json:"env"`
	Rank             int            `json:"rank"`
	Repeat           int64          `json:"repeat"`
	StopOnFailure    int64          `json:"stop_on_failure"`
	TimeoutSeconds   float64        `json:"timeout"`
	TaskHistoryCount int            `json:"task_history_count"`
	Type             string         `json:"type"`
	Args             map[string]any `json:"args"`
	Stopped          bool           `json:"stopped"`
}

func submitEntry(cmd *cobra.Command, body createEntryBody) error {
	c, err := newClientFromFlags(cmd)
	if err != nil {
		return err
	}
	created, err := c.createEntry(body)
	if err != nil {
		return err
	}
	fmt.Printf("entry %v created (%s, type %s)\n", created["id"], body.Command, body.Type)
	return nil
}

func parseTriggerArgs(flags []string) (map[string]any, error) {
	args := make(map[string]any, len(flags))
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --arg %q, want key=value", f)
		}
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			args[key] = n
			continue
		}
		args[key] = value
	}
	return args, nil
}

// runCreateWizard walks the operator through entry creation with huh forms,
// branching the second group on the chosen trigger type.
func runCreateWizard(cmd *cobra.Command) error {
	var (
		name, command, cwd, typeName string
		timeoutStr, repeatStr        string
		stopOnFailureStr             string
	)

	basics := huh.NewGroup(
		huh.NewInput().Title("Name").Description("optional, for your own reference").Value(&name),
		huh.NewInput().Title("Command").Description("shell command to run").Value(&command).Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("command is required")
			}
			return nil
		}),
		huh.NewInput().Title("Working directory").Description("blank uses the server's default").Value(&cwd),
		huh.NewInput().Title("Repeat count").Description("0 = unlimited").Value(&repeatStr).Placeholder("0"),
		huh.NewInput().Title("Per-task timeout (seconds)").Description("blank = none").Value(&timeoutStr),
		huh.NewInput().Title("Stop after N failures").Description("0 or blank = never stop on failure").Value(&stopOnFailureStr).Placeholder("0"),
		huh.NewSelect[string]().Title("Trigger type").Options(
			huh.NewOption("interval — run every N seconds", "interval"),
			huh.NewOption("datetime — crontab-like calendar match", "datetime"),
			huh.NewOption("event — fire on an event bus topic", "event"),
		).Value(&typeName),
	)

	if err := huh.NewForm(basics).Run(); err != nil {
		return fmt.Errorf("wizard cancelled: %w", err)
	}

	args, err := runTriggerArgsWizard(typeName)
	if err != nil {
		return err
	}

	var repeat int64
	if repeatStr != "" {
		repeat, err = strconv.ParseInt(repeatStr, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid repeat count %q: %w", repeatStr, err)
		}
	}
	var timeout float64
	if timeoutStr != "" {
		timeout, err = strconv.ParseFloat(timeoutStr, 64)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", timeoutStr, err)
		}
	}
	var stopOnFailure int64
	if stopOnFailureStr != "" {
		stopOnFailure, err = strconv.ParseInt(stopOnFailureStr, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid stop-on-failure count %q: %w", stopOnFailureStr, err)
		}
	}

	return submitEntry(cmd, createEntryBody{
		Name:             name,
		Command:          command,
		Cwd:              cwd,
		Rank:             0,
		Repeat:           repeat,
		StopOnFailure:    stopOnFailure,
		TimeoutSeconds:   timeout,
		TaskHistoryCount: 5,
		Type:             typeName,
		Args:             args,
	})
}

func runTriggerArgsWizard(typeName string) (map[string]any, error) {
	switch typeName {
	case "interval":
		var interval, after string
		group := huh.NewGroup(
			huh.NewInput().Title("Interval (seconds)").Value(&interval).Validate(func(s string) error {
				if _, err := strconv.ParseFloat(s, 64); err != nil {
					return fmt.Errorf("must be a number")
				}
				return nil
			}),
			huh.NewInput().Title("Initial delay (seconds)").Description("blank defaults to the interval").Value(&after),
		)
		if err := huh.NewForm(group).Run(); err != nil {
			return nil, fmt.Errorf("wizard cancelled: %w", err)
		}
		args, _ := parseTriggerArgs(nonEmptyArgs(map[string]string{"interval": interval, "after": after}))
		return args, nil

	case "datetime":
		var minute, hour, mday, month, weekday string
		group := huh.NewGroup(
			huh.NewInput().Title("Minute").Description("e.g. */15, 0, blank for *").Value(&minute),
			huh.NewInput().Title("Hour").Description("e.g. 2, 9-17, blank for *").Value(&hour),
			huh.NewInput().Title("Day of month").Description("blank for *").Value(&mday),
			huh.NewInput().Title("Month").Description("blank for *").Value(&month),
			huh.NewInput().Title("Weekday").Description("e.g. mon-fri, blank for *").Value(&weekday),
		)
		if err := huh.NewForm(group).Run(); err != nil {
			return nil, fmt.Errorf("wizard cancelled: %w", err)
		}
		return nonEmptyStringArgs(map[string]string{
			"minute": minute, "hour": hour, "mday": mday, "month": month, "weekday": weekday,
		}), nil

	case "event":
		var topic, nth, after, minInterval string
		group := huh.NewGroup(
			huh.NewInput().Title("Topic").Value(&topic).Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("topic is required")
				}
				return nil
			}),
			huh.NewInput().Title("Fire every Nth event").Description("blank = every event").Value(&nth),
			huh.NewInput().Title("Skip the first N events").Description("blank = none").Value(&after),
			huh.NewInput().Title("Minimum interval between fires (seconds)").Description("blank = none").Value(&minInterval),
		)
		if err := huh.NewForm(group).Run(); err != nil {
			return nil, fmt.Errorf("wizard cancelled: %w", err)
		}
		args, _ := parseTriggerArgs(nonEmptyArgs(map[string]string{
			"topic": topic, "nth": nth, "after": after, "min_interval": minInterval,
		}))
		return args, nil

	default:
		return nil, fmt.Errorf("unknown trigger type %q", typeName)
	}
}

func nonEmptyArgs(m map[string]string) []string {
	var out []string
	for k, v := range m {
		if v != "" {
			out = append(out, k+"="+v)
		}
	}
	return out
}

func nonEmptyStringArgs(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
