package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

func isConsole(format string) bool {
	switch strings.ToLower(format) {
	case FormatConsole, FormatPretty, "text":
		return true
	}
	return false
}

const ansiReset = "\033[0m"

// levelTags maps zerolog level names to a tag and its color.
var levelTags = map[string][2]string{
	"debug": {"DBG", "\033[36m"},
	"info":  {"INF", "\033[32m"},
	"warn":  {"WRN", "\033[33m"},
	"error": {"ERR", "\033[31m"},
	"fatal": {"FTL", "\033[35m"},
}

// consoleWriter prints "[SVC][LVL] message key:value", SVC being the
// service name's first three letters upper-cased.
func consoleWriter(w io.Writer, service string, noColor bool) zerolog.ConsoleWriter {
	paint := func(color, s string) string {
		if noColor || color == "" {
			return s
		}
		return color + s + ansiReset
	}
	var prefix string
	if len(service) >= 3 {
		prefix = paint("\033[34m", "["+strings.ToUpper(service[:3])+"]")
	}
	text := func(i any) string {
		if i == nil {
			return ""
		}
		return fmt.Sprint(i)
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
		FormatLevel: func(i any) string {
			name := strings.ToLower(fmt.Sprint(i))
			tag, ok := levelTags[name]
			if !ok {
				tag[0] = strings.ToUpper(name)
			}
			return prefix + paint(tag[1], "["+tag[0]+"]")
		},
		FormatMessage:    text,
		FormatFieldName:  func(i any) string { return fmt.Sprint(i) + ":" },
		FormatFieldValue: text,
	}
}
