// Package logging keeps the log file of an experiment run.
//
// Every run directory gets logs/radiomics.log. Lines carry the RFC3339
// time, the short run id and the stage that produced them:
//
//	2026-10-17T09:12:44Z 3f2a9c1e [fold] 2/10 16-16-1-0-0: accuracy 0.8125
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Location of the log inside a run directory.
const (
	Dir      = "logs"
	FileName = "radiomics.log"
)

// Stage tags a log line with the part of the run that wrote it.
type Stage string

const (
	StageRun         Stage = "run"
	StageCombination Stage = "combination"
	StageFold        Stage = "fold"
	StageResults     Stage = "results"
)

// RunLog appends the events of one experiment run. A nil RunLog discards
// everything, so callers without a run directory can pass nil.
type RunLog struct {
	mu    sync.Mutex
	w     io.WriteCloser
	path  string
	runID string
	now   func() time.Time
}

// Open creates (or appends to) the log of runDir. Only the first eight
// characters of runID are written.
func Open(runDir, runID string) (*RunLog, error) {
	dir := filepath.Join(runDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return &RunLog{w: f, path: path, runID: runID, now: time.Now}, nil
}

// Path returns the log file, or "" for a nil RunLog.
func (l *RunLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close flushes and closes the file.
func (l *RunLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	err := l.w.Close()
	l.w = nil
	return err
}

// Event writes one line for stage. Trailing newlines of the message are
// dropped; events after Close are ignored.
func (l *RunLog) Event(stage Stage, format string, args ...any) {
	if l == nil {
		return
	}
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	fmt.Fprintf(l.w, "%s %s [%s] %s\n", l.now().UTC().Format(time.RFC3339), l.runID, stage, msg)
}
