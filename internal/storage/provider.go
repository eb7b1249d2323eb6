// Package storage defines the project-tree file abstraction.
package storage

// Provider is the interface for project file operations. All paths are
// relative to the project root.
type Provider interface {
	// List returns the files directly inside dir whose base name matches
	// the glob pattern, sorted by name.
	List(dir, pattern string) ([]string, error)
	// IsDir reports whether dir exists and is a directory.
	IsDir(dir string) bool
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
}
