package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Files stores each document as <dir>/<kind>/<guild>.json
type Files struct {
	dir string
}

// NewFiles creates the directory layout under dir
func NewFiles(dir string) (*Files, error) {
	for _, kind := range []Kind{KindConfig, KindApplications, KindCooldowns} {
		if err := os.MkdirAll(filepath.Join(dir, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", kind, err)
		}
	}
	return &Files{dir: dir}, nil
}

func (f *Files) Get(_ context.Context, guildID string, kind Kind) ([]byte, error) {
	path, err := f.path(guildID, kind)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoDocument
	}
	return data, err
}

// Put writes through a temp file and a rename so readers never see half a document
func (f *Files) Put(_ context.Context, guildID string, kind Kind, data []byte) error {
	path, err := f.path(guildID, kind)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), guildID+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (f *Files) Close() error { return nil }

func (f *Files) path(guildID string, kind Kind) (string, error) {
	if guildID == "" || strings.ContainsAny(guildID, `/\.`) {
		return "", fmt.Errorf("invalid guild id %q", guildID)
	}
	return filepath.Join(f.dir, string(kind), guildID+".json"), nil
}
