//go:build sonic

package utils

import (
	"io"

	"github.com/bytedance/sonic"
)

var JSONMarshal = sonic.Marshal
var JSONUnmarshal = sonic.Unmarshal

func JSONDecode(r io.Reader, v any) error {
	return sonic.ConfigDefault.NewDecoder(r).Decode(v)
}
