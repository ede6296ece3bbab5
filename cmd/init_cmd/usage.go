package init_cmd

import L "mediavault/logger"

const usageStr string = `
USAGE
mediavault init [OPTIONS]

DESCRIPTION
Writes a starter config.json with placeholder store credentials.
Without options the config lands in the user config directory, the
same place 'mediavault serve' looks by default.

OPTIONS
--output, -o <path>
Write the starter config to <path> instead of the default location.

--force
Overwrite <path> if it already exists.

EXAMPLES
1. Create the default config -
mediavault init

2. Write a starter config next to the binary -
mediavault init -o ./config.json

SEE ALSO
1. mediavault help config
`

func Usage() string {
	return usageStr
}

func PrintUsage() {
	L.Print(usageStr)
}
