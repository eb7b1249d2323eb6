package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/elrelease/internal/deps"
	"github.com/starford/elrelease/internal/fileset"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App          ApplicationConfig  `yaml:"app"`
	Layout       LayoutConfig       `yaml:"layout"`
	Dependencies DependenciesConfig `yaml:"dependencies"`
	Commit       CommitConfig       `yaml:"commit"`
	Propagation  PropagationConfig  `yaml:"propagation"`
	Docs         DocsConfig         `yaml:"docs"`
	Journal      JournalConfig      `yaml:"journal"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if err := c.Dependencies.Validate(); err != nil {
		return fmt.Errorf("dependencies: %w", err)
	}
	if err := c.Commit.Validate(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return c.Journal.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.Required, validation.In(LogFormatJSON, LogFormatText)),
	)
}

// LayoutConfig describes where the project keeps its files.
type LayoutConfig struct {
	SourceDir         string   `yaml:"source_dir"`
	DocsDir           string   `yaml:"docs_dir"`
	LibraryPattern    string   `yaml:"library_pattern"`
	DescriptorPattern string   `yaml:"descriptor_pattern"`
	DocPattern        string   `yaml:"doc_pattern"`
	DocSourcePattern  string   `yaml:"doc_source_pattern"`
	ExcludeLibraries  []string `yaml:"exclude_libraries"`
	ExcludeDocs       []string `yaml:"exclude_docs"`
	Changelog         []string `yaml:"changelog"`
}

// Validate validates the layout configuration.
func (c *LayoutConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LibraryPattern, validation.Required, validation.By(globPattern)),
		validation.Field(&c.DescriptorPattern, validation.Required, validation.By(globPattern)),
		validation.Field(&c.DocPattern, validation.Required, validation.By(globPattern)),
		validation.Field(&c.DocSourcePattern, validation.By(globPattern)),
		validation.Field(&c.ExcludeLibraries, validation.Each(validation.By(globPattern))),
		validation.Field(&c.Changelog, validation.Required),
	)
}

// FileLayout converts the section into a discovery layout.
func (c *LayoutConfig) FileLayout() fileset.Layout {
	return fileset.Layout{
		SourceDir:         c.SourceDir,
		DocsDir:           c.DocsDir,
		LibraryPattern:    c.LibraryPattern,
		DescriptorPattern: c.DescriptorPattern,
		DocPattern:        c.DocPattern,
		DocSourcePattern:  c.DocSourcePattern,
		ExcludeLibraries:  c.ExcludeLibraries,
		ExcludeDocs:       c.ExcludeDocs,
		Changelog:         c.Changelog,
	}
}

func globPattern(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := path.Match(s, ""); err != nil {
		return fmt.Errorf("bad pattern %q", s)
	}
	return nil
}

// DependenciesConfig names the packages sorted ahead of all others.
type DependenciesConfig struct {
	Core   string `yaml:"core"`
	Compat string `yaml:"compat"`
}

// Validate validates the dependencies configuration.
func (c *DependenciesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Core, validation.Required),
		validation.Field(&c.Compat, validation.Required, validation.NotIn(c.Core).Error("must differ from core")),
	)
}

// Order returns the canonical dependency order.
func (c *DependenciesConfig) Order() deps.Order {
	return deps.Order{Core: c.Core, Compat: c.Compat}
}

// CommitConfig controls the hand-off to git.
type CommitConfig struct {
	Skip       bool   `yaml:"skip"`
	SigningKey string `yaml:"signing_key"`
	TagPrefix  string `yaml:"tag_prefix"`
}

// Validate validates the commit configuration.
func (c *CommitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TagPrefix, validation.Required),
	)
}

// PropagationConfig tunes version propagation.
type PropagationConfig struct {
	// SkipMissing turns a library without Package-Requires into a no-op.
	SkipMissing bool `yaml:"skip_missing"`
}

// DocsConfig holds the documentation build commands, run from the project
// root. An empty command disables that build.
type DocsConfig struct {
	Build   []string `yaml:"build"`
	Rebuild []string `yaml:"rebuild"`
}

// RebuildCommand returns Rebuild, falling back to Build.
func (c *DocsConfig) RebuildCommand() []string {
	if len(c.Rebuild) > 0 {
		return c.Rebuild
	}
	return c.Build
}

// JournalConfig holds the run journal configuration.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// DefaultJournalPath returns the per-user journal location.
func DefaultJournalPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "elrelease", "journal.db")
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	layout := fileset.DefaultLayout()
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
		},
		Layout: LayoutConfig{
			SourceDir:         layout.SourceDir,
			DocsDir:           layout.DocsDir,
			LibraryPattern:    layout.LibraryPattern,
			DescriptorPattern: layout.DescriptorPattern,
			DocPattern:        layout.DocPattern,
			DocSourcePattern:  layout.DocSourcePattern,
			ExcludeLibraries:  layout.ExcludeLibraries,
			ExcludeDocs:       layout.ExcludeDocs,
			Changelog:         layout.Changelog,
		},
		Dependencies: DependenciesConfig{
			Core:   deps.DefaultOrder.Core,
			Compat: deps.DefaultOrder.Compat,
		},
		Commit: CommitConfig{
			TagPrefix: "v",
		},
		Docs: DocsConfig{
			Build: []string{"make", "-C", "docs", "texi"},
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    DefaultJournalPath(),
		},
	}
}
