package cmd

import (
	"context"
	"mediavault/cmd/help_cmd"
	"mediavault/cmd/init_cmd"
	"mediavault/cmd/serve_cmd"
	"mediavault/cmd/version_cmd"
	"os"
)

func Execute(ctx context.Context, args []string) error {
	if len(os.Args) < 2 {
		PrintUsage()
		return nil
	}

	values := map[string]string{
		"binary_name":  os.Args[0],
		"command_name": os.Args[1],
	}

	ctx = context.WithValue(ctx, "values", values)

	switch os.Args[1] {
	case "serve":
		return serve_cmd.Execute(ctx, args[2:])
	case "init":
		return init_cmd.Execute(ctx, args[2:])
	case "help":
		return help_cmd.Execute(ctx, args[2:])
	case "version", "--version", "-v":
		return version_cmd.Execute(ctx, args[2:])
	default:
		PrintUsage()
		return nil
	}
}
