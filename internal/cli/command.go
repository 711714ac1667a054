// Package cli provides the pflag-based subcommand dispatch shared by
// ringd and ringctl.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// IO bundles the streams a Command's Exec function talks to.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Command is one subcommand: its flags, help text, and the function that
// runs it.
type Command struct {
	Flags *flag.FlagSet
	Usage string
	Short string
	Long  string
	Exec  func(io *IO, args []string) error
}

// Name returns the command's invocation name, the first word of Usage.
func (c *Command) Name() string {
	fields := strings.Fields(c.Usage)
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}

// HelpLine returns a one-line summary for a command listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-24s %s", c.Usage, c.Short)
}

// PrintHelp writes the command's full help text to w.
func (c *Command) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "usage: %s\n\n%s\n", c.Usage, c.Long)

	if c.Flags != nil && c.Flags.HasFlags() {
		fmt.Fprintln(w, "\nflags:")
		fmt.Fprint(w, c.Flags.FlagUsages())
	}
}

// Run parses args against the command's flag set, then calls Exec.
func (c *Command) Run(io *IO, args []string) error {
	if c.Flags != nil {
		c.Flags.SetOutput(io.Stderr)

		if err := c.Flags.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				c.PrintHelp(io.Stdout)
				return nil
			}

			return err
		}

		args = c.Flags.Args()
	}

	return c.Exec(io, args)
}
