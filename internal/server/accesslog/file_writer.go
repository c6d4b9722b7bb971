package accesslog

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wisnuc/appifi/internal/utils"
)

const activeLogName = "access.log"

type userLogWriter struct {
	mu          sync.Mutex
	logDir      string
	maxSize     int64
	file        *os.File
	currentSize int64
}

func newUserLogWriter(logDir string, maxSize int64) (*userLogWriter, error) {
	if err := os.MkdirAll(logDir, LogDirPermission); err != nil {
		return nil, fmt.Errorf("failed to create user log directory: %w", err)
	}
	w := &userLogWriter{logDir: logDir, maxSize: maxSize}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *userLogWriter) open() error {
	file, err := os.OpenFile(filepath.Join(w.logDir, activeLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, LogFilePermission)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = file
	w.currentSize = stat.Size()
	return nil
}

// write appends one JSON line, rotating first if the line would overflow
// the active file.
func (w *userLogWriter) write(entry Entry) error {
	data, err := utils.JSONMarshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentSize > 0 && w.currentSize+int64(len(data)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return fmt.Errorf("failed to rotate log: %w", err)
		}
	}

	n, err := w.file.Write(data)
	w.currentSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}

func (w *userLogWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	rotated := fmt.Sprintf("access_%s.log", time.Now().UTC().Format("20060102_150405.000000"))
	if err := os.Rename(filepath.Join(w.logDir, activeLogName), filepath.Join(w.logDir, rotated)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rename log file: %w", err)
	}
	if err := w.cleanOldLogs(); err != nil {
		return fmt.Errorf("failed to clean old logs: %w", err)
	}
	return w.open()
}

// cleanOldLogs keeps the newest MaxLogFiles rotated files.
func (w *userLogWriter) cleanOldLogs() error {
	rotated, err := rotatedLogs(w.logDir)
	if err != nil {
		return err
	}
	for len(rotated) > MaxLogFiles {
		if err := os.Remove(filepath.Join(w.logDir, rotated[0])); err != nil {
			return fmt.Errorf("failed to remove old log file: %w", err)
		}
		rotated = rotated[1:]
	}
	return nil
}

func (w *userLogWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotatedLogs returns rotated file names, oldest first.
func rotatedLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && name != activeLogName && strings.HasPrefix(name, "access_") && filepath.Ext(name) == ".log" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}
