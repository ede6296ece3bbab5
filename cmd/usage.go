package cmd

import L "mediavault/logger"

var usageStr string = `
USAGE
mediavault [-v | -version] [-h | -help] <command> [<args>]

DESCRIPTION
mediavault is a self-hosted media library backend: it stores files in a
remote store, keeps thumbnails in a cache store, and tracks identity,
tags and history in a local metadata log.

COMMANDS
These are common mediavault commands used in various situations -
help       Help about a subcommand
init       Writes a starter config file
serve      Runs the mediavault API server
version    Prints version information

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
	L.Print(usageStr)
}
