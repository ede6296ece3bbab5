package help_cmd

import "fmt"

var usageStr string = `
USAGE
    mediavault help <command>

DESCRIPTION
    Prints usage information for a specified subcommand.

COMMANDS
    These are common mediavault commands used in various situations -
        help       Help about a subcommand
        config     Help about config.json file
        init       Writes a starter config file
        serve      Runs the mediavault API server

EXAMPLES
    See 'mediavault help <command>' to read about a specific subcommand.

SEE ALSO
    1. mediavault help serve
    2. mediavault help config
`

func Usage() string {
	return usageStr
}

func PrintUsage() {
	fmt.Print(usageStr)
}
