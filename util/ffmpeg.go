package util

import (
	"fmt"
	"os"
	"os/exec"
)

// LocateFFmpeg returns the path to the ffmpeg binary. The FFMPEG environment
// variable takes precedence over $PATH lookup.
func LocateFFmpeg() (string, error) {
	if p := os.Getenv("FFMPEG"); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("FFMPEG=%v: %v", p, err)
		}
		return p, nil
	}
	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %v", err)
	}
	return p, nil
}
