package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	defaultServerURL    = "http://localhost:8787"
	defaultResourcePath = "/dry"
)

// CLI represents the command-line interface with dependencies
type CLI struct {
	Output io.Writer
	Error  io.Writer
	Exit   func(int)
}

// NewCLI creates a new CLI instance with default dependencies
func NewCLI() *CLI {
	return &CLI{
		Output: os.Stdout,
		Error:  os.Stderr,
		Exit:   os.Exit,
	}
}

// GlobalConfig holds common configuration for all commands
type GlobalConfig struct {
	ServerURL     string
	Path          string
	TLSSkipVerify bool
	TLSCACert     string
}

// ParseGlobalFlags parses common flags and returns GlobalConfig and remaining args
func (cli *CLI) ParseGlobalFlags(args []string, commandName string) (*GlobalConfig, []string, error) {
	config := &GlobalConfig{}

	flagSet := flag.NewFlagSet(commandName, flag.ContinueOnError)
	flagSet.SetOutput(cli.Error)
	flagSet.StringVar(&config.ServerURL, "server", defaultServerURL, "droppy-api server URL")
	flagSet.StringVar(&config.Path, "path", defaultResourcePath, "Resource path")
	flagSet.BoolVar(&config.TLSSkipVerify, "tls-skip-verify", false, "Skip TLS certificate verification")
	flagSet.StringVar(&config.TLSCACert, "ca-cert", "", "Path to CA certificate file")

	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		return nil, nil, flag.ErrHelp
	}

	if err := flagSet.Parse(reorderFlags(args)); err != nil {
		return nil, nil, err
	}

	return config, flagSet.Args(), nil
}

// reorderFlags moves flags ahead of positional arguments so that
// "submit alice hi --server x" parses like "submit --server x alice hi".
func reorderFlags(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			flags = append(flags, "--")
			positional = append(positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)
		// Value-taking flags consume the next argument unless written as --flag=value.
		if !strings.Contains(arg, "=") && takesValue(arg) && i+1 < len(args) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	return append(flags, positional...)
}

func takesValue(flagArg string) bool {
	switch strings.TrimLeft(flagArg, "-") {
	case "server", "path", "ca-cert":
		return true
	}
	return false
}

// CreateClient creates a DroppyClient from GlobalConfig
func (cli *CLI) CreateClient(config *GlobalConfig) (*DroppyClient, error) {
	tlsConfig := &TLSConfig{
		Enabled:    strings.HasPrefix(config.ServerURL, "https://"),
		SkipVerify: config.TLSSkipVerify,
		CACertFile: config.TLSCACert,
	}

	return NewDroppyClientWithTLS(config.ServerURL, config.Path, tlsConfig)
}

// Printf writes formatted output to the output writer
func (cli *CLI) Printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.Output, format, args...)
}

// Println writes a line to the output writer
func (cli *CLI) Println(args ...interface{}) {
	fmt.Fprintln(cli.Output, args...)
}

// Errorf writes formatted error to the error writer
func (cli *CLI) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(cli.Error, format, args...)
}

// Errorln writes an error line to the error writer
func (cli *CLI) Errorln(args ...interface{}) {
	fmt.Fprintln(cli.Error, args...)
}

// ExitError prints an error message and exits
func (cli *CLI) ExitError(format string, args ...interface{}) {
	cli.Errorf(format, args...)
	cli.Exit(1)
}

// HandleError prints err and exits. It reports whether err was non-nil so
// callers can return when Exit does not terminate the process.
func (cli *CLI) HandleError(err error, context string) bool {
	if err != nil {
		cli.ExitError("Error %s: %v\n", context, err)
		return true
	}
	return false
}

// ValidateExactArgs checks that exactly n arguments are provided
func (cli *CLI) ValidateExactArgs(args []string, n int, usage string) bool {
	if len(args) != n {
		cli.Errorln(usage)
		cli.Exit(1)
		return false
	}
	return true
}
