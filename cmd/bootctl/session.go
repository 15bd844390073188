package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// pushRecord is what bootctl remembers about the last push it completed
// against a given address, so "bootctl last" can report a firmware
// version/hash without having to query the device.
type pushRecord struct {
	Addr      string `json:"addr"`
	ImagePath string `json:"image_path"`
	Version   uint32 `json:"version"`
	SHA256Hex string `json:"sha256"`
	Bytes     int    `json:"bytes"`
}

func cacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bootctl"), nil
}

// saveLastPush records rec to disk atomically: a crash or power loss
// mid-write must never leave a half-written cache file.
func saveLastPush(rec pushRecord) error {
	dir, err := cacheDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	buf, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(filepath.Join(dir, "last_push.json"), bytes.NewReader(buf))
}

// loadLastPush returns the zero value, not an error, when nothing has
// been pushed yet from this host.
func loadLastPush() (pushRecord, error) {
	dir, err := cacheDir()
	if err != nil {
		return pushRecord{}, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "last_push.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return pushRecord{}, nil
		}
		return pushRecord{}, err
	}
	var rec pushRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return pushRecord{}, err
	}
	return rec, nil
}
