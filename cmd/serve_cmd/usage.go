package serve_cmd

import L "mediavault/logger"

const usageStr string = `
USAGE
mediavault serve [OPTIONS]

DESCRIPTION
Runs the mediavault API server -
1. Opens (creating if needed) the metadata log database
2. Connects the data store and the thumbnail cache store
3. Serves the HTTP API until interrupted

OPTIONS
--config, -c <path>
Path to config.json.
Defaults to the config in the user config directory, creating a
starter one on first run.

--log-level, -L <log-level>
Specify log output level
Default: info
Accepted values (in order of increasing amount of output) -
debug, info, warn, error, silent

--no-color
Disable colored log output. Overrides log_color_mode from the
config file.

EXAMPLES
1. Serve with the default config -
mediavault serve

2. Serve a specific config with debug logs -
mediavault serve -c ./config.json -L debug

SEE ALSO
1. mediavault help config
`

func Usage() string {
	return usageStr
}

func PrintUsage() {
	L.Print(usageStr)
}
