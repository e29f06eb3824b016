package viewer

import (
	"strings"
	"testing"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		goos     string
		expected string
	}{
		{goos: "windows", expected: "cmd /c start  a.jpg"},
		{goos: "darwin", expected: "open a.jpg"},
		{goos: "linux", expected: "xdg-open a.jpg"},
		{goos: "freebsd", expected: "xdg-open a.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			cmd := command(tt.goos, "a.jpg")
			got := strings.Join(cmd.Args, " ")
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestOpenMissingBinary(t *testing.T) {
	s := System{goos: "linux"}
	t.Setenv("PATH", t.TempDir())
	if err := s.Open("a.jpg"); err == nil {
		t.Error("Expected an error when the viewer binary is not installed")
	}
}
