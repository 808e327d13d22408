package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatPretty  = "pretty"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Logger wraps a zerolog logger. Derived loggers keep the service name.
type Logger struct {
	zl      zerolog.Logger
	service string
}

var global atomic.Pointer[Logger]

// Init installs the process logger built from cfg. Console formats also
// become zerolog's default logger.
func Init(cfg *Config) {
	cfg.ApplyDefaults()
	l := New(cfg, "")
	global.Store(l)
	if isConsole(cfg.Format) {
		log.Logger = l.zl
	}
}

// GetGlobalLogger returns the Init logger. Before Init it lazily installs
// a console logger on stderr.
func GetGlobalLogger() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	global.CompareAndSwap(nil, New(&Config{Level: "info", Format: FormatConsole, Timestamp: true}, ""))
	return global.Load()
}

// New logs to cfg.Output. Anything but "stdout" means stderr, keeping
// stdout free for transcripts.
func New(cfg *Config, service string) *Logger {
	var w io.Writer = os.Stderr
	if strings.EqualFold(cfg.Output, "stdout") {
		w = os.Stdout
	}
	return NewWithWriter(cfg, service, w)
}

// NewWithWriter logs to w. The level applies process-wide and an
// unparseable one means info.
func NewWithWriter(cfg *Config, service string, w io.Writer) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	console := isConsole(cfg.Format)
	if console {
		w = consoleWriter(w, service, cfg.NoColor)
	}
	zc := zerolog.New(w).With()
	if console || cfg.Timestamp {
		zc = zc.Timestamp()
	}
	if service != "" && !console {
		zc = zc.Str("service", service)
	}
	if cfg.Caller {
		zc = zc.Caller()
	}
	return &Logger{zl: zc.Logger(), service: service}
}

func NewNop() *Logger { return &Logger{zl: zerolog.Nop()} }

func (l *Logger) derive(zc zerolog.Context) *Logger {
	return &Logger{zl: zc.Logger(), service: l.service}
}

// WithComponent tags every line with the component field.
func (l *Logger) WithComponent(name string) *Logger {
	return l.derive(l.zl.With().Str(FieldComponent, name))
}

func (l *Logger) Debug(msg string, fields ...map[string]any) { emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...map[string]any)  { emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...map[string]any)  { emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...map[string]any) { emit(l.zl.Error(), msg, fields) }

func Debug(msg string, fields ...map[string]any) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...map[string]any)  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...map[string]any)  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...map[string]any) { GetGlobalLogger().Error(msg, fields...) }

func emit(ev *zerolog.Event, msg string, fields []map[string]any) {
	for _, m := range fields {
		ev = ev.Fields(m)
	}
	ev.Msg(msg)
}
