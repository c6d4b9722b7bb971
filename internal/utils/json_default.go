//go:build !sonic

package utils

import (
	"io"

	"github.com/goccy/go-json"
)

var JSONMarshal = json.Marshal
var JSONUnmarshal = json.Unmarshal

func JSONDecode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}
