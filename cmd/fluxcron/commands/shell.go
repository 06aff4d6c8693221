package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open an interactive admin shell against a running gateway",
		Long: `Open a readline-backed REPL for issuing list/start/stop/delete/sync
commands against a running fluxcron gateway without retyping --server and
--token on every invocation.

Commands: list, start <id>, stop <id>, delete <id> [--kill], sync <topic>
[--epsilon seconds], help, exit`,
		Args: cobra.NoArgs,
		RunE: runShell,
	}
}

func runShell(cmd *cobra.Command, _ []string) error {
	c, err := newClientFromFlags(cmd)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "fluxcron> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("starting shell: %w", err)
	}
	defer rl.Close()

	fmt.Printf("fluxcron admin shell, connected to %s. Type `help` for commands, `exit` to quit.\n", c.baseURL)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Println("list | start <id> | stop <id> | delete <id> [--kill] | sync <topic|-> [--epsilon seconds] | exit")
		case "list":
			runShellList(c)
		case "start":
			runShellStartStop(c, fields, true)
		case "stop":
			runShellStartStop(c, fields, false)
		case "delete":
			runShellDelete(c, fields)
		case "sync":
			runShellSync(c, fields)
		default:
			fmt.Printf("unknown command %q, type `help`\n", fields[0])
		}
	}
}

func runShellList(c *client) {
	entries, err := c.listEntries()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("no entries")
		return
	}
	for _, e := range entries {
		fmt.Printf("%v\t%v\t%v\t%s\n", e["id"], e["name"], e["type"], stateOf(e))
	}
}

func runShellStartStop(c *client, fields []string, start bool) {
	if len(fields) != 2 {
		fmt.Println("usage: start|stop <id>")
		return
	}
	var err error
	if start {
		err = c.startEntry(fields[1])
	} else {
		err = c.stopEntry(fields[1])
	}
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}

func runShellDelete(c *client, fields []string) {
	if len(fields) < 2 {
		fmt.Println("usage: delete <id> [--kill]")
		return
	}
	kill := len(fields) > 2 && fields[2] == "--kill"
	if err := c.deleteEntry(fields[1], kill); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}

func runShellSync(c *client, fields []string) {
	if len(fields) < 2 {
		fmt.Println("usage: sync <topic|-> [--epsilon seconds]")
		return
	}
	topic := fields[1]
	if topic == "-" {
		topic = ""
	}
	epsilon := 0.015
	if len(fields) >= 4 && fields[2] == "--epsilon" {
		if v, err := strconv.ParseFloat(fields[3], 64); err == nil {
			epsilon = v
		}
	}
	if err := c.sync(topic, epsilon); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}
