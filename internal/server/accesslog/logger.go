package accesslog

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wisnuc/appifi/internal/utils"
)

// AccessLogger appends audit entries to one JSON-lines file per user.
type AccessLogger struct {
	baseDir string
	maxSize int64
	logger  *slog.Logger

	mu      sync.Mutex
	writers map[string]*userLogWriter
}

func New(baseDir string, logger *slog.Logger) (*AccessLogger, error) {
	if err := os.MkdirAll(baseDir, LogDirPermission); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &AccessLogger{
		baseDir: baseDir,
		maxSize: MaxLogSize,
		logger:  logger.With("component", "access_logger"),
		writers: make(map[string]*userLogWriter),
	}, nil
}

// LogRequest records entry for the request's user, filling in the request
// fields. Failures are logged, never returned.
func (al *AccessLogger) LogRequest(ctx *gin.Context, entry Entry) {
	entry.User = ctx.GetString("user")
	entry.IP = ctx.ClientIP()
	entry.UserAgent = ctx.Request.UserAgent()
	if entry.Status == 0 {
		entry.Status = ctx.Writer.Status()
	}
	al.Log(entry)
}

func (al *AccessLogger) Log(entry Entry) {
	if entry.User == "" {
		entry.User = "anonymous"
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := al.write(entry); err != nil {
		al.logger.Error("failed to write access log", "user", entry.User, "op", entry.Op, "error", err)
	}
}

func (al *AccessLogger) write(entry Entry) error {
	al.mu.Lock()
	w, ok := al.writers[entry.User]
	if !ok {
		var err error
		w, err = newUserLogWriter(filepath.Join(al.baseDir, sanitizeUsername(entry.User)), al.maxSize)
		if err != nil {
			al.mu.Unlock()
			return err
		}
		al.writers[entry.User] = w
	}
	al.mu.Unlock()

	return w.write(entry)
}

func (al *AccessLogger) Close() error {
	al.mu.Lock()
	defer al.mu.Unlock()

	var errs []error
	for user, w := range al.writers {
		errs = append(errs, w.close())
		delete(al.writers, user)
	}
	return errors.Join(errs...)
}

// UserLogs returns up to limit of the user's most recent entries, oldest
// first.
func (al *AccessLogger) UserLogs(user string, limit int) ([]Entry, error) {
	userDir := filepath.Join(al.baseDir, sanitizeUsername(user))
	files, err := rotatedLogs(userDir)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	files = append(files, activeLogName)

	entries := []Entry{}
	for i := len(files) - 1; i >= 0 && len(entries) < limit; i-- {
		fileEntries, err := readLogFile(filepath.Join(userDir, files[i]))
		if err != nil {
			al.logger.Warn("failed to read log file", "file", files[i], "error", err)
			continue
		}
		entries = append(fileEntries, entries...)
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func readLogFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		var entry Entry
		if err := utils.JSONUnmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}
