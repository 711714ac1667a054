// Command ringctl is an administrative client for a running ringd broker:
// one-shot subcommands mirroring the wire protocol's command table, plus an
// interactive REPL for ad hoc operation.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/ringdb/ringdb/internal/cli"
	"github.com/ringdb/ringdb/pkg/broker"
	"github.com/ringdb/ringdb/pkg/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

var commands map[string]*cli.Command

func run(args []string) int {
	globalFlags := flag.NewFlagSet("ringctl", flag.ContinueOnError)
	addr := globalFlags.String("addr", "", "broker address (overrides config)")
	authKey := globalFlags.String("auth-key", "", "broker auth key (overrides config)")
	configPath := globalFlags.StringP("config", "c", "", "path to config file")

	globalFlags.ParseErrorsWhitelist.UnknownFlags = true
	if err := globalFlags.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	rest := globalFlags.Args()

	cwd, _ := os.Getwd()

	overrides := config.Overrides{}
	if *addr != "" {
		overrides.ListenAddr = addr
	}

	if *authKey != "" {
		overrides.AuthKey = authKey
	}

	cfg, err := config.Load(envMap(), cwd, *configPath, overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ringctl:", err)
		return 1
	}

	io := &cli.IO{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}

	commands = buildCommands(cfg)

	if len(rest) == 0 {
		printUsage(io)
		return 2
	}

	if rest[0] == "repl" {
		return runRepl(cfg)
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "ringctl: no such command %q\n", rest[0])
		return 2
	}

	if err := cmd.Run(io, rest[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ringctl:", err)
		return 1
	}

	return 0
}

func envMap() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}

	return env
}

func printUsage(io *cli.IO) {
	fmt.Fprintln(io.Stdout, "usage: ringctl [--addr ADDR] [--auth-key KEY] <command> [args]")
	fmt.Fprintln(io.Stdout, "\ncommands:")

	for _, name := range []string{"create", "update", "append", "fetch", "info", "exists", "delete", "list", "get_config", "repl"} {
		if cmd, ok := commands[name]; ok {
			fmt.Fprintln(io.Stdout, cmd.HelpLine())
		} else if name == "repl" {
			fmt.Fprintln(io.Stdout, "  repl                     interactive session")
		}
	}
}

func dial(cfg config.Config) (*broker.Client, error) {
	return broker.Dial(cfg.ListenAddr, cfg.AuthKey, 5*time.Second)
}

func callAndPrint(io *cli.IO, cfg config.Config, frame broker.Frame) error {
	client, err := dial(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Call(frame)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(io.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

func buildCommands(cfg config.Config) map[string]*cli.Command {
	cmds := map[string]*cli.Command{}

	cmds["list"] = &cli.Command{
		Usage: "list",
		Short: "list every known series",
		Exec: func(io *cli.IO, args []string) error {
			return callAndPrint(io, cfg, broker.Frame{Command: broker.CmdList})
		},
	}

	infoLike := func(name string, short string) *cli.Command {
		return &cli.Command{
			Usage: name + " SLUG",
			Short: short,
			Exec: func(io *cli.IO, args []string) error {
				if len(args) != 1 {
					return fmt.Errorf("ringctl: %s requires exactly one SLUG argument", name)
				}

				return callAndPrint(io, cfg, broker.Frame{Command: broker.Command(name), Series: args[0]})
			},
		}
	}

	cmds["info"] = infoLike("info", "show series metadata")
	cmds["get_config"] = infoLike("get_config", "show series configuration")
	cmds["exists"] = infoLike("exists", "report whether a series exists")
	cmds["delete"] = infoLike("delete", "delete a series and its audit file")

	cmds["fetch"] = &cli.Command{
		Usage: "fetch SLUG AGGREGATION RESOLUTION_SECONDS [START] [END]",
		Short: "fetch points from an archive",
		Exec: func(io *cli.IO, args []string) error {
			if len(args) < 3 {
				return fmt.Errorf("ringctl: fetch requires SLUG AGGREGATION RESOLUTION_SECONDS")
			}

			payload := map[string]any{
				"aggregation_type": args[1],
				"resolution":       json.Number(args[2]),
			}

			if len(args) > 3 {
				payload["period_start"] = args[3]
			}

			if len(args) > 4 {
				payload["period_end"] = args[4]
			}

			raw, err := json.Marshal(payload)
			if err != nil {
				return err
			}

			return callAndPrint(io, cfg, broker.Frame{Command: broker.CmdFetch, Series: args[0], Args: raw})
		},
	}

	cmds["append"] = &cli.Command{
		Usage: "append SLUG TIMESTAMP VALUE",
		Short: "append one reading and audit it",
		Exec: func(io *cli.IO, args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("ringctl: append requires SLUG TIMESTAMP VALUE")
			}

			raw, err := json.Marshal(map[string]any{
				"readings": []map[string]any{{"timestamp": args[1], "value": json.Number(args[2])}},
			})
			if err != nil {
				return err
			}

			return callAndPrint(io, cfg, broker.Frame{Command: broker.CmdAppend, Series: args[0], Args: raw})
		},
	}

	cmds["update"] = &cli.Command{
		Usage: "update SLUG TIMESTAMP VALUE",
		Short: "append one reading without auditing",
		Exec: func(io *cli.IO, args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("ringctl: update requires SLUG TIMESTAMP VALUE")
			}

			raw, err := json.Marshal(map[string]any{
				"batch": []map[string]any{{"timestamp": args[1], "value": json.Number(args[2])}},
			})
			if err != nil {
				return err
			}

			return callAndPrint(io, cfg, broker.Frame{Command: broker.CmdUpdate, Series: args[0], Args: raw})
		},
	}

	cmds["create"] = &cli.Command{
		Usage: "create SLUG SERIES_TYPE START INTERVAL TIMEZONE ARCHIVES_JSON",
		Short: "create a new series",
		Exec: func(io *cli.IO, args []string) error {
			if len(args) != 6 {
				return fmt.Errorf("ringctl: create requires SLUG SERIES_TYPE START INTERVAL TIMEZONE ARCHIVES_JSON")
			}

			var archives any
			if err := json.Unmarshal([]byte(args[5]), &archives); err != nil {
				return fmt.Errorf("ringctl: parsing ARCHIVES_JSON: %w", err)
			}

			raw, err := json.Marshal(map[string]any{
				"series_type":   args[1],
				"start":         args[2],
				"interval":      json.Number(args[3]),
				"timezone_name": args[4],
				"archives":      archives,
			})
			if err != nil {
				return err
			}

			return callAndPrint(io, cfg, broker.Frame{Command: broker.CmdCreate, Series: args[0], Args: raw})
		},
	}

	return cmds
}

func runRepl(cfg config.Config) int {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	io := &cli.IO{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}

	fmt.Println("ringctl repl. type 'help' for commands, 'exit' to quit.")

	for {
		input, err := line.Prompt("ringctl> ")
		if err != nil {
			return 0
		}

		line.AppendHistory(input)

		fields := splitFields(input)
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "exit" || fields[0] == "quit" {
			return 0
		}

		if fields[0] == "help" {
			printUsage(io)
			continue
		}

		cmd, ok := commands[fields[0]]
		if !ok {
			fmt.Fprintf(os.Stderr, "ringctl: no such command %q\n", fields[0])
			continue
		}

		if err := cmd.Run(io, fields[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "ringctl:", err)
		}
	}
}

func splitFields(s string) []string {
	var fields []string

	var cur []rune
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if len(cur) > 0 {
				fields = append(fields, string(cur))
				cur = nil
			}

			continue
		}

		cur = append(cur, r)
	}

	if len(cur) > 0 {
		fields = append(fields, string(cur))
	}

	return fields
}
