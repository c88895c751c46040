package logger

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes a rotating log file.
type FileConfig struct {
	Path      string
	MaxSizeMB int // size threshold that triggers rotation
	MaxFiles  int // rotated files retained; older ones are removed
}

// NewFileWriter returns a writer that appends to cfg.Path, rotating by size
// through lumberjack. Rotated files are gzip-compressed.
func NewFileWriter(cfg FileConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
		Compress:   true,
	}
}
