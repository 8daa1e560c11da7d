//go:build windows

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	return []string{
		filepath.Join(os.Getenv("LOCALAPPDATA"), "Vitalis", "telemetry.yaml"),
		filepath.Join(os.Getenv("ProgramData"), "Vitalis", "telemetry.yaml"),
	}
}
