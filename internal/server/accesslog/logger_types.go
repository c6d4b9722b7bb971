package accesslog

import "time"

const (
	MaxLogSize        = 10 * 1024 * 1024 // 10MB
	MaxLogFiles       = 5
	LogFilePermission = 0o600
	LogDirPermission  = 0o700
)

type Op string

const (
	OpGet    Op = "get"
	OpFind   Op = "find"
	OpMkdir  Op = "mkdir"
	OpIngest Op = "ingest"
	OpMove   Op = "move"
	OpDelete Op = "delete"
	OpDrives Op = "drives"
)

// Entry is one audited gateway call.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Op        Op        `json:"op"`
	Drive     string    `json:"drive,omitempty"`
	Path      string    `json:"path,omitempty"`
	NewPath   string    `json:"new_path,omitempty"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Status    int       `json:"status"`
	Code      string    `json:"code,omitempty"`
	Resolved  *[2]bool  `json:"resolved,omitempty"`
	Parts     int       `json:"parts,omitempty"`
}
