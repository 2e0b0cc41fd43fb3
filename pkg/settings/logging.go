package settings

import (
	"fmt"
	"log"
	"strings"
)

// LogVerbosity selects which log lines reach the sink.
type LogVerbosity uint8

const (
	// LogNone emits nothing.
	LogNone LogVerbosity = iota
	// LogFailuresOnly emits failure lines only.
	LogFailuresOnly
	// LogDebug emits success and failure lines.
	LogDebug
)

func (v LogVerbosity) String() string {
	switch v {
	case LogNone:
		return "none"
	case LogFailuresOnly:
		return "failures"
	case LogDebug:
		return "debug"
	}
	return fmt.Sprintf("verbosity(%d)", uint8(v))
}

// UnmarshalText accepts "none", "failures" and "debug".
func (v *LogVerbosity) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "none", "off":
		*v = LogNone
	case "failures", "failures-only", "error":
		*v = LogFailuresOnly
	case "debug":
		*v = LogDebug
	default:
		return fmt.Errorf("settings: unknown log verbosity %q", text)
	}
	return nil
}

// LoggingConfig routes diagnostic lines to Sink, gated by Verbosity.
type LoggingConfig struct {
	Verbosity LogVerbosity
	Sink      func(message string)
}

// DefaultLogging reports failures through the standard logger.
func DefaultLogging() LoggingConfig {
	return LoggingConfig{Verbosity: LogFailuresOnly}
}

func (c LoggingConfig) emit(msg string) {
	if c.Sink != nil {
		c.Sink(msg)
		return
	}
	log.Print(msg)
}

func (c LoggingConfig) debugf(format string, args ...any) {
	if c.Verbosity != LogDebug {
		return
	}
	c.emit(fmt.Sprintf(format, args...))
}

func (c LoggingConfig) failuref(format string, args ...any) {
	if c.Verbosity != LogDebug && c.Verbosity != LogFailuresOnly {
		return
	}
	c.emit(fmt.Sprintf(format, args...))
}
