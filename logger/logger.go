package L

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// NOTE: populated at build time with -ldflags (-X)
var printCallerLocation string

// log levels
type LogLevel byte

const (
	DEBUG LogLevel = iota
	INFO
	NORMAL
	WARN
	ERROR
	PANIC
	SILENT
)

// color modes
type ColorMode int

const (
	COLOR_MODE_AUTO ColorMode = iota
	COLOR_MODE_ALWAYS
	COLOR_MODE_NEVER
)

// styles
// debug - blue
var debugStyle = lipgloss.NewStyle().Padding(0).Margin(0).
	Foreground(lipgloss.Color("4"))

// info - green
var infoStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("2"))

// no color - normal
var noColorStyle = lipgloss.NewStyle()

// warn - yellow
var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("3"))

// error,panic - red
var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("1"))

// prefixes
const (
	debugPrefix  string = "DBG  "
	infoPrefix   string = "INF  "
	normalPrefix string = "     "
	warnPrefix   string = "WRN  "
	errorPrefix  string = "ERR  "
	panicPrefix  string = "PNC  "
)

var (
	level         = INFO
	colorMode     = COLOR_MODE_AUTO
	termHasColors = termenv.NewOutput(os.Stdout).Profile != termenv.Ascii && !termenv.EnvNoColor()
	debugLogger   = log.New(os.Stdout, colorize(debugPrefix, &debugStyle), log.Lmsgprefix)
	infoLogger    = log.New(os.Stdout, colorize(infoPrefix, &infoStyle), log.Lmsgprefix)
	normalLogger  = log.New(os.Stdout, colorize(normalPrefix, &noColorStyle), log.Lmsgprefix)
	warnLogger    = log.New(os.Stdout, colorize(warnPrefix, &warnStyle), log.Lmsgprefix)
	errorLogger   = log.New(os.Stderr, colorize(errorPrefix, &errorStyle), log.Lmsgprefix)
	panicLogger   = log.New(os.Stderr, colorize(panicPrefix, &errorStyle), log.Lmsgprefix)
)

func SetLevelFromString(l string) error {
	switch strings.ToLower(l) {
	case "debug":
		level = DEBUG
	case "info":
		level = INFO
	case "warn":
		level = WARN
	case "error":
		level = ERROR
	case "panic":
		level = PANIC
	case "silent":
		level = SILENT
	default:
		return fmt.Errorf("unsupported log level: %s", l)
	}
	return nil
}

func SetLevel(l LogLevel) error {
	switch l {
	case DEBUG, INFO, WARN, ERROR, PANIC, SILENT:
		level = l
	default:
		return fmt.Errorf("unsupported log level: %d", l)
	}
	return nil
}

func SetColorModeFromString(colorModeStr string) error {
	switch strings.ToLower(colorModeStr) {
	case "always":
		colorMode = COLOR_MODE_ALWAYS
	case "never":
		colorMode = COLOR_MODE_NEVER
	case "auto":
		colorMode = COLOR_MODE_AUTO
	default:
		return fmt.Errorf("unsupported color mode: %s", colorModeStr)
	}
	updateLoggerPrefixColors()
	return nil
}

func SetColorMode(cm ColorMode) error {
	switch cm {
	case COLOR_MODE_ALWAYS, COLOR_MODE_NEVER, COLOR_MODE_AUTO:
		colorMode = cm
	default:
		return fmt.Errorf("unsupported color mode: %s", cm)
	}
	updateLoggerPrefixColors()
	return nil
}

func (cm ColorMode) String() string {
	switch cm {
	case COLOR_MODE_ALWAYS:
		return "always"
	case COLOR_MODE_NEVER:
		return "never"
	case COLOR_MODE_AUTO:
		return "auto"
	default:
		return "auto"
	}
}

func colorsEnabled() bool {
	switch colorMode {
	case COLOR_MODE_ALWAYS:
		return true
	case COLOR_MODE_NEVER:
		return false
	default:
		return termHasColors
	}
}

func colorize(s string, style *lipgloss.Style) string {
	if !colorsEnabled() {
		return s
	}
	return style.Render(s)
}

func updateLoggerPrefixColors() {
	debugLogger.SetPrefix(colorize(debugPrefix, &debugStyle))
	infoLogger.SetPrefix(colorize(infoPrefix, &infoStyle))
	normalLogger.SetPrefix(colorize(normalPrefix, &noColorStyle))
	warnLogger.SetPrefix(colorize(warnPrefix, &warnStyle))
	errorLogger.SetPrefix(colorize(errorPrefix, &errorStyle))
	panicLogger.SetPrefix(colorize(panicPrefix, &errorStyle))
}

// each line gets its own prefixed log record so multiline payloads
// (http dumps, sql) stay readable
func printMultiline(l *log.Logger, style *lipgloss.Style, s string) int {
	written := 0
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		l.Print(colorize(line, style))
		written += len(line) + 1
	}
	return written
}

func printWithCallerLocation(l *log.Logger, style *lipgloss.Style, s string) int {
	_, file, line, ok := runtime.Caller(2)
	if ok {
		s = fmt.Sprintf("%s:%d %s", filepath.Base(file), line, s)
	}
	return printMultiline(l, style, s)
}

func Debug(v ...any) {
	if level <= DEBUG {
		if printCallerLocation == "true" {
			printWithCallerLocation(debugLogger, &debugStyle, fmt.Sprint(v...))
		} else {
			printMultiline(debugLogger, &debugStyle, fmt.Sprint(v...))
		}
	}
}

func Info(v ...any) {
	if level <= INFO {
		printMultiline(infoLogger, &infoStyle, fmt.Sprint(v...))
	}
}

func Warn(v ...any) {
	if level <= WARN {
		printMultiline(warnLogger, &warnStyle, fmt.Sprint(v...))
	}
}

func Error(v ...any) {
	if level <= ERROR {
		if printCallerLocation == "true" {
			printWithCallerLocation(errorLogger, &errorStyle, fmt.Sprint(v...))
		} else {
			printMultiline(errorLogger, &errorStyle, fmt.Sprint(v...))
		}
	}
}

func Panic(v ...any) {
	printMultiline(panicLogger, &errorStyle, fmt.Sprint(v...))
	os.Exit(1)
}

func GetLogLevel() LogLevel {
	return level
}

func IsVerbose() bool {
	return level < INFO
}

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	case PANIC:
		return "panic"
	case SILENT:
		return "silent"
	default:
		return "Unknown log level, indicates a bug. Please report"
	}
}

func Printf(format string, v ...any) (int, error) {
	if level < SILENT {
		return printMultiline(normalLogger, &noColorStyle, fmt.Sprintf(format, v...)), nil
	}
	return 0, nil
}

func Print(a ...any) (int, error) {
	if level < SILENT {
		return printMultiline(normalLogger, &noColorStyle, fmt.Sprint(a...)), nil
	}
	return 0, nil
}

func Println(a ...any) (int, error) {
	if level < SILENT {
		return printMultiline(normalLogger, &noColorStyle, fmt.Sprintln(a...)), nil
	}
	return 0, nil
}
