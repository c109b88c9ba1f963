// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package log provides level-gated logging for the layer.
// The verbosity defaults to warnings and can be raised or
// silenced through the WSISHIM_LOG_LEVEL environment variable
// or the configuration file.
package log

import (
	"log"
	"os"
	"strconv"
	"sync/atomic"
)

// Level identifies the importance of a log message.
// Messages are dropped when their level is greater than
// the current verbosity.
type Level int32

const (
	None Level = iota
	Error
	Warn
	Info
	Debug
)

var level atomic.Int32

func init() {
	level.Store(int32(Warn))
	if s, ok := os.LookupEnv("WSISHIM_LOG_LEVEL"); ok {
		if n, err := strconv.Atoi(s); err == nil {
			SetLevel(Level(n))
		}
	}
}

// SetLevel sets the current verbosity.
// Values outside the [None, Debug] range are clamped.
func SetLevel(l Level) {
	if l < None {
		l = None
	} else if l > Debug {
		l = Debug
	}
	level.Store(int32(l))
}

// Current returns the current verbosity.
func Current() Level { return Level(level.Load()) }

func logf(l Level, tag, format string, args ...any) {
	if Level(level.Load()) < l {
		return
	}
	log.Printf(tag+format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...any) { logf(Error, "[wsishim] error: ", format, args...) }

// Warnf logs a warning message.
func Warnf(format string, args ...any) { logf(Warn, "[wsishim] warning: ", format, args...) }

// Infof logs an informational message.
func Infof(format string, args ...any) { logf(Info, "[wsishim] ", format, args...) }

// Debugf logs a debug message.
func Debugf(format string, args ...any) { logf(Debug, "[wsishim] debug: ", format, args...) }
