package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultOutputDir = "./mail_output"

// File implements the Transport interface by writing each message to an
// .eml-style file in the configured output directory. Intended for
// development; messages are never actually delivered.
type File struct {
	outputDir string
}

// NewFile creates a File transport that writes messages to the directory
// named by Config.Endpoint, defaulting to "./mail_output".
func NewFile(cfg Config) *File {
	dir := cfg.Endpoint
	if dir == "" {
		dir = defaultOutputDir
	}
	return &File{outputDir: dir}
}

func (f *File) Name() string { return "file" }

// Send writes the message to a file named <timestamp>_<message-id>.eml
// in the output directory and returns a successful result.
func (f *File) Send(_ context.Context, msg *Message) (*Result, error) {
	if err := os.MkdirAll(f.outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("file: create output dir: %w", err)
	}

	raw, err := buildMIME(msg)
	if err != nil {
		return nil, fmt.Errorf("file: build message: %w", err)
	}

	ts := time.Now().Format("20060102_150405")
	safeID := strings.ReplaceAll(msg.ID, "/", "_")
	filename := fmt.Sprintf("%s_%s.eml", ts, safeID)
	path := filepath.Join(f.outputDir, filename)

	if err := os.WriteFile(path, raw, 0o640); err != nil {
		return nil, fmt.Errorf("file: write %s: %w", path, err)
	}

	return &Result{
		MessageID: "file-" + msg.ID,
		Status:    StatusSent,
		Timestamp: time.Now(),
		Metadata:  map[string]string{"path": path},
	}, nil
}

// HealthCheck verifies the output directory is writable.
func (f *File) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(f.outputDir, 0o750); err != nil {
		return fmt.Errorf("file: output dir not writable: %w", err)
	}
	return nil
}
