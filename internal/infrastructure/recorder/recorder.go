package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"browser-agent/internal/application/port/output"
	"browser-agent/internal/domain/entity"
)

var _ output.RecorderPort = (*FileRecorder)(nil)

// FileRecorder persists run histories and artifacts under a base directory:
// <dir>/<ownerID>/steps.jsonl for steps, <dir>/<ownerID>/<name> for
// artifacts. Safe for concurrent use by multiple runs.
type FileRecorder struct {
	dir    string
	logger output.LoggerPort

	mu    sync.Mutex
	files map[string]*os.File
}

func NewFileRecorder(dir string, logger output.LoggerPort) (*FileRecorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}
	return &FileRecorder{
		dir:    dir,
		logger: logger,
		files:  make(map[string]*os.File),
	}, nil
}

func (r *FileRecorder) RecordStep(ownerID string, step entity.Step) {
	data, err := json.Marshal(step)
	if err != nil {
		r.logger.Error("Failed to marshal step", "owner", ownerID, "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.stepFile(ownerID)
	if err != nil {
		r.logger.Error("Failed to open step log", "owner", ownerID, "error", err)
		return
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		r.logger.Error("Failed to append step", "owner", ownerID, "error", err)
	}
}

func (r *FileRecorder) RecordArtifact(ownerID, name string, data []byte) {
	dir := filepath.Join(r.dir, ownerID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		r.logger.Error("Failed to create artifact dir", "owner", ownerID, "error", err)
		return
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		r.logger.Error("Failed to write artifact", "owner", ownerID, "name", name, "error", err)
	}
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, file := range r.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.files = make(map[string]*os.File)
	return firstErr
}

// stepFile returns the open steps.jsonl for the owner, creating it on first
// use. Caller holds mu.
func (r *FileRecorder) stepFile(ownerID string) (*os.File, error) {
	if file, ok := r.files[ownerID]; ok {
		return file, nil
	}
	dir := filepath.Join(r.dir, ownerID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filepath.Join(dir, "steps.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	r.files[ownerID] = file
	return file, nil
}

// Nop discards everything. Used in tests and when recording is disabled.
type Nop struct{}

func (Nop) RecordStep(string, entity.Step)        {}
func (Nop) RecordArtifact(string, string, []byte) {}
func (Nop) Close() error                          { return nil }
