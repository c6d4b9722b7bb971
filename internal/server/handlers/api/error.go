package api

import "fmt"

// APIError is the JSON error envelope. Filesystem errors carry the errno-style
// code, the optional entry-type xcode and, for multipart uploads, the index of
// the failing part.
type APIError struct {
	Code    string `json:"code"`
	XCode   string `json:"xcode,omitempty"`
	Index   *int   `json:"index,omitempty"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: code=%s, message=%s", e.Code, e.Message)
}
