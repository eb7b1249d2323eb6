package internal

import (
	"io"

	"github.com/starford/elrelease/internal/release"
)

// Command selects what Run does.
type Command string

// Commands.
const (
	CommandRelease   Command = "release"
	CommandResume    Command = "resume"
	CommandCopyright Command = "copyright"
	CommandStatus    Command = "status"
	CommandHistory   Command = "history"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	command  Command
	root     string
	version  string
	noCommit bool
	yes      bool
	stdout   io.Writer
	prompter release.Prompter
	vcs      release.VCS
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithCommand sets the command to run.
func WithCommand(cmd Command) Option {
	return func(a *application) {
		a.command = cmd
	}
}

// WithRoot sets the project root. Defaults to the working directory.
func WithRoot(root string) Option {
	return func(a *application) {
		a.root = root
	}
}

// WithVersion sets the version argument of release and resume.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithNoCommit leaves the changes uncommitted.
func WithNoCommit(noCommit bool) Option {
	return func(a *application) {
		a.noCommit = noCommit
	}
}

// WithYes answers every question with yes or its default.
func WithYes(yes bool) Option {
	return func(a *application) {
		a.yes = yes
	}
}

// WithOutput sets where reports are printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}

// WithPrompter replaces the interactive prompter.
func WithPrompter(p release.Prompter) Option {
	return func(a *application) {
		a.prompter = p
	}
}

// WithVCS replaces the git collaborator.
func WithVCS(v release.VCS) Option {
	return func(a *application) {
		a.vcs = v
	}
}
