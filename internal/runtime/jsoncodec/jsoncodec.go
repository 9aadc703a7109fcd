// Package jsoncodec is the single JSON entry point for envelopes, control
// payloads and Runtime API bodies. It is backed by sonic in std-compatible mode.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Valid reports whether data is a syntactically valid JSON document.
func Valid(data []byte) bool {
	return defaultConfig.Valid(data)
}

// HasPath reports whether data is a JSON document in which path resolves to a
// non-null value. Path elements are object keys (string) or array indexes (int).
// The document is not fully decoded.
func HasPath(data []byte, path ...any) bool {
	node, err := sonic.Get(data, path...)
	if err != nil || !node.Exists() {
		return false
	}
	switch node.TypeSafe() {
	case ast.V_NONE, ast.V_ERROR, ast.V_NULL:
		return false
	default:
		return true
	}
}

func Encode(w io.Writer, v any) error {
	return defaultConfig.NewEncoder(w).Encode(v)
}

func Decode(r io.Reader, v any) error {
	return defaultConfig.NewDecoder(r).Decode(v)
}
