// Package sessionfile reads and writes portable session files, and imports
// Firefox session recovery files.
package sessionfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lotas/flowtabs/internal/types"
)

// Encode serializes a session as lz4-compressed JSON.
func Encode(sess types.Session) ([]byte, error) {
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return compressBlock(flowMagic, raw)
}

// Decode parses data written by Encode.
func Decode(data []byte) (types.Session, error) {
	var sess types.Session
	raw, err := decompressBlock(flowMagic, data)
	if err != nil {
		return sess, fmt.Errorf("session file: %w", err)
	}
	if err := json.Unmarshal(raw, &sess); err != nil {
		return sess, fmt.Errorf("parse session JSON: %w", err)
	}
	return sess, nil
}

// WriteFile writes the session atomically: a temporary file in the same
// directory is renamed over path.
func WriteFile(path string, sess types.Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func ReadFile(path string) (types.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Session{}, err
	}
	return Decode(data)
}
