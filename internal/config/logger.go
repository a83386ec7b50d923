package config

import (
	"io"
	"log"
	"os"
)

// Logger is a thin *log.Logger wrapper, not a new logging framework —
// matching the teacher's direct log.Printf/log.Fatalf usage throughout
// internal/assets and internal/world. It exists only to give each
// subsystem ("net", "game", "cgame") a consistent prefix.
type Logger struct {
	*log.Logger
}

// NewLogger returns a Logger writing to w (os.Stderr when w is nil) with
// the given subsystem tag as its prefix.
func NewLogger(tag string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{Logger: log.New(w, "["+tag+"] ", log.LstdFlags)}
}
