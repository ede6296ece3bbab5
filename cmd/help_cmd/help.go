package help_cmd

import (
	"context"
	"fmt"
	"mediavault/cmd/init_cmd"
	"mediavault/cmd/serve_cmd"
)

func Execute(ctx context.Context, args []string) error {
	if len(args) != 1 {
		PrintUsage()
		return nil
	}

	switch args[0] {
	case "serve":
		serve_cmd.PrintUsage()
	case "init":
		init_cmd.PrintUsage()
	case "help":
		PrintUsage()
	case "config":
		ConfigPrintUsage()
	default:
		return fmt.Errorf("No such command: %s", args[0])
	}
	return nil
}
