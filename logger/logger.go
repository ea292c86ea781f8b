package logger

import (
	"fmt"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger - accessible from anywhere. No-op until Init is called.
var Log = zap.NewNop()

// Init sets up the file logger - call this from main
func Init(filename string, debug bool) error {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{filename}
	config.ErrorOutputPaths = []string{filename}
	config.Sampling = nil
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	l, err := config.Build()
	if err != nil {
		return fmt.Errorf("build logger for %s: %w", filename, err)
	}

	Log = l
	Log.Info("Logger initialized", zap.String("file", filename), zap.Bool("debug", debug))
	return nil
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Log.Sync()
}

// Screen prints operator-facing output to the terminal.
func Screen(text string, c *color.Color) {
	if c == nil {
		fmt.Println(text)
		return
	}
	c.Println(text)
}

var (
	Info  = color.RGB(150, 150, 150)
	Alert = color.RGB(250, 150, 150)
)
