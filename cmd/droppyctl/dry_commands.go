package main

import (
	"errors"
	"flag"
)

// DryCommands handles the submit and lookup commands
type DryCommands struct {
	cli *CLI
}

// NewDryCommands creates a new dry commands handler
func NewDryCommands(cli *CLI) *DryCommands {
	return &DryCommands{cli: cli}
}

// Submit stores a response under a name
func (d *DryCommands) Submit(args []string) {
	config, remaining, err := d.cli.ParseGlobalFlags(args, "submit")
	if err == flag.ErrHelp {
		d.cli.Println("Usage: droppyctl submit <name> <response> [options]")
		return
	}
	if d.cli.HandleError(err, "parsing flags") {
		return
	}
	if !d.cli.ValidateExactArgs(remaining, 2, "Usage: droppyctl submit <name> <response>") {
		return
	}

	name := remaining[0]
	response := remaining[1]

	client, err := d.cli.CreateClient(config)
	if d.cli.HandleError(err, "creating client") {
		return
	}

	err = client.SubmitDry(name, response)
	if d.cli.HandleError(err, "submitting '"+name+"'") {
		return
	}

	d.cli.Printf("Stored response for %s\n", name)
}

// Lookup prints the response stored under a name
func (d *DryCommands) Lookup(args []string) {
	config, remaining, err := d.cli.ParseGlobalFlags(args, "lookup")
	if err == flag.ErrHelp {
		d.cli.Println("Usage: droppyctl lookup <name> [options]")
		return
	}
	if d.cli.HandleError(err, "parsing flags") {
		return
	}
	if !d.cli.ValidateExactArgs(remaining, 1, "Usage: droppyctl lookup <name>") {
		return
	}

	name := remaining[0]

	client, err := d.cli.CreateClient(config)
	if d.cli.HandleError(err, "creating client") {
		return
	}

	value, err := client.LookupDry(name)
	if errors.Is(err, ErrNotFound) {
		d.cli.ExitError("No response stored for '%s'\n", name)
		return
	}
	if d.cli.HandleError(err, "looking up '"+name+"'") {
		return
	}

	d.cli.Printf("%s\n", value)
}
