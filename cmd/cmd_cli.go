package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var cliCmd = &cobra.Command{
	Use:   "cli",
	Short: "Run an interactive shell over the bridge's debug commands",
	Long: `Run an interactive shell that dispatches lines to the same cobra
commands available on the command line (e.g. "routes", "version"),
useful for poking at a running bridge's debug HTTP surface without
re-typing the binary name and flags each time.`,
	Run: cliRun,
}

var rl *readline.Instance

func init() {
	rootCmd.AddCommand(cliCmd)
}

func initReadline() {
	completer := readline.NewPrefixCompleter()
	for _, child := range rootCmd.Commands() {
		pcFromCommands(completer, child)
	}

	var err error
	rl, err = readline.NewEx(&readline.Config{
		Prompt:            "bridge\033[31m»\033[0m ",
		HistoryFile:       "/tmp/wlanpi-mqtt-bridge-readline.tmp",
		AutoComplete:      completer,
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	rl.CaptureExitSignal()
}

func cliRun(cmd *cobra.Command, args []string) {
	initReadline()
	defer rl.Close()

	for cliLine() {
	}
	fmt.Fprintln(cmdOutput, "Good bye!")
}

func pcFromCommands(parent readline.PrefixCompleterInterface, c *cobra.Command) {
	pc := readline.PcItem(c.Use)
	parent.SetChildren(append(parent.GetChildren(), pc))
	for _, child := range c.Commands() {
		pcFromCommands(pc, child)
	}
}

func cliLine() bool {
	line, err := rl.Readline()
	switch err {
	case readline.ErrInterrupt:
		return len(line) != 0
	case io.EOF:
		return false
	}

	return runCLILine(line)
}

// runCLILine dispatches one interactive line to the root command tree. It
// is a variable, not a plain function, so tests can stub it out without
// driving a real readline.Instance.
var runCLILine = func(line string) bool {
	line = strings.TrimSpace(line)
	if line == "exit" || line == "quit" {
		return false
	}
	if line == "" {
		return true
	}

	args := strings.Fields(line)
	found, remaining, err := rootCmd.Find(args)
	if err != nil {
		fmt.Fprintf(cmdOutput, "bridge: %s\n", err)
		return true
	}
	if found == rootCmd && len(remaining) == len(args) {
		// Find falls back to the root command itself when the first word
		// doesn't name a known subcommand; the root's own RunE starts the
		// bridge server and is never what an interactive line means.
		fmt.Fprintf(cmdOutput, "bridge: unknown command %q\n", args[0])
		return true
	}

	if err := found.ParseFlags(remaining); err != nil {
		fmt.Fprintf(cmdOutput, "bridge: %s\n", err)
		return true
	}
	if found.RunE != nil {
		if err := found.RunE(found, found.Flags().Args()); err != nil {
			fmt.Fprintf(cmdOutput, "bridge: %s\n", err)
		}
	} else if found.Run != nil {
		found.Run(found, found.Flags().Args())
	}
	return true
}
