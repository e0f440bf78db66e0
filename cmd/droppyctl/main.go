package main

import (
	"os"
)

const version = "1.0.0"

func main() {
	NewCLI().Run(os.Args[1:])
}

// Run dispatches the top-level command
func (cli *CLI) Run(args []string) {
	if len(args) == 0 {
		cli.printUsage()
		cli.Exit(1)
		return
	}

	command := args[0]
	commandArgs := args[1:]
	dry := NewDryCommands(cli)

	switch command {
	case "submit":
		dry.Submit(commandArgs)
	case "lookup":
		dry.Lookup(commandArgs)
	case "version":
		cli.Printf("droppyctl version %s\n", version)
	case "help", "-h", "--help":
		cli.printUsage()
	default:
		cli.Errorf("Unknown command: %s\n", command)
		cli.printUsage()
		cli.Exit(1)
	}
}

func (cli *CLI) printUsage() {
	cli.Println("droppyctl - droppy-api CLI Tool")
	cli.Println()
	cli.Println("Usage: droppyctl <command> [options]")
	cli.Println()
	cli.Println("Commands:")
	cli.Println("  submit <name> <response>  Store a response under name for five minutes")
	cli.Println("  lookup <name>             Print the response stored under name")
	cli.Println("  version                   Show version")
	cli.Println("  help                      Show this help")
	cli.Println()
	cli.Println("Global Options:")
	cli.Println("  --server <url>            droppy-api server URL (default: " + defaultServerURL + ")")
	cli.Println("  --path <path>             Resource path (default: " + defaultResourcePath + ")")
	cli.Println("  --tls-skip-verify         Skip TLS certificate verification")
	cli.Println("  --ca-cert <file>          Path to CA certificate file")
}
