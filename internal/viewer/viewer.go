package viewer

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// Viewer shows an image to the person reviewing it.
type Viewer interface {
	Open(path string) error
}

// System opens files with the desktop's default application.
type System struct {
	goos string
}

// New returns a viewer for the running platform.
func New() System {
	return System{goos: runtime.GOOS}
}

// Open starts the viewer and returns without waiting for it to exit.
func (s System) Open(path string) error {
	cmd := command(s.goos, path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start viewer: %w", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("Viewer exited", "path", path, "err", err)
		}
	}()
	return nil
}

func command(goos, path string) *exec.Cmd {
	switch goos {
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path)
	case "darwin":
		return exec.Command("open", path)
	default:
		return exec.Command("xdg-open", path)
	}
}

// Nop never shows anything. Used for headless runs.
type Nop struct{}

func (Nop) Open(string) error { return nil }
