// Package docbuild runs the project's documentation build commands.
package docbuild

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Command runs one configured command line for source regeneration and
// another for a full rebuild, both from the project root.
type Command struct {
	dir     string
	build   []string
	rebuild []string
	logger  *slog.Logger
}

// NewCommand creates a Command. An empty argv disables that kind of build.
func NewCommand(dir string, build, rebuild []string, logger *slog.Logger) *Command {
	return &Command{dir: dir, build: build, rebuild: rebuild, logger: logger}
}

// Build runs the rebuild command when full is set, else the build command.
func (c *Command) Build(ctx context.Context, full bool) error {
	argv := c.build
	if full {
		argv = c.rebuild
	}
	if len(argv) == 0 {
		c.logger.Debug("docs: no build command configured", slog.Bool("full", full))
		return nil
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	c.logger.Info("docs: building", slog.String("command", strings.Join(argv, " ")))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with %d: %s", argv[0], exitErr.ExitCode(), strings.TrimSpace(out.String()))
		}
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	return nil
}
