package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// deviceProfile is the optional bootctl.jsonc device profile, parsed as
// JWCC the way a per-project config file tolerates comments and trailing
// commas. bootctl uses only Addr, and only when no --addr flag is given.
type deviceProfile struct {
	Addr    string `json:"addr,omitempty"`
	Timeout string `json:"timeout,omitempty"` // decoded but not applied; the connection timeout comes from --timeout
}

// loadDeviceProfile reads ./bootctl.jsonc if present. A missing file is
// not an error: the CLI flags alone are a complete configuration.
func loadDeviceProfile(workDir string) (deviceProfile, error) {
	path := filepath.Join(workDir, "bootctl.jsonc")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return deviceProfile{}, nil
		}
		return deviceProfile{}, err
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return deviceProfile{}, err
	}

	var prof deviceProfile
	if err := json.Unmarshal(standardized, &prof); err != nil {
		return deviceProfile{}, err
	}
	return prof, nil
}
