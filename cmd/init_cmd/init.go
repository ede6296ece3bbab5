package init_cmd

import (
	"context"
	"flag"
	"fmt"

	"mediavault/config"
	"mediavault/file_io"
	L "mediavault/logger"
)

func Execute(ctx context.Context, args []string) error {
	initCmd := flag.NewFlagSet("init", flag.ExitOnError)
	outputPath := initCmd.String("output", "", "Where to write the starter config")
	initCmd.StringVar(outputPath, "o", "", "Where to write the starter config")
	force := initCmd.Bool("force", false, "Overwrite an existing config file")
	initCmd.Usage = func() {
		PrintUsage()
	}
	err := initCmd.Parse(args)
	if err != nil {
		return err
	}
	if len(initCmd.Args()) > 0 {
		return fmt.Errorf("too many arguments. For more information, check 'mediavault help init'")
	}

	if *outputPath == "" {
		// default path also writes a starter config when absent
		path, err := config.GetDefaultConfigPath()
		if err != nil {
			return err
		}
		L.Printf("Config ready at: %s\n", path)
		return nil
	}

	if file_io.Exists(*outputPath) && !*force {
		return fmt.Errorf("%s already exists, use --force to overwrite", *outputPath)
	}
	_, err = file_io.WriteToFile(*outputPath, []byte(config.DumpDefaultConfig()), file_io.WRITE_OVERWRITE)
	if err != nil {
		return err
	}
	L.Printf("Config written to: %s\n", *outputPath)
	return nil
}
