package loader

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultFileResolver resolves imports against the local filesystem,
// relative to the importing file.
type DefaultFileResolver struct{}

func NewDefaultFileResolver() *DefaultFileResolver {
	return &DefaultFileResolver{}
}

func (r *DefaultFileResolver) Resolve(importerPath, importPath string) (io.ReadCloser, string, error) {
	resolvedPath := importPath
	if !filepath.IsAbs(importPath) && importerPath != importPath {
		resolvedPath = filepath.Join(filepath.Dir(importerPath), importPath)
	}

	canonicalPath, err := filepath.Abs(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("could not get absolute path for '%s': %w", resolvedPath, err)
	}

	file, err := os.Open(canonicalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("file not found: %s (resolved from '%s')", canonicalPath, importPath)
		}
		return nil, "", fmt.Errorf("could not open file '%s': %w", canonicalPath, err)
	}
	return file, canonicalPath, nil
}

// MemoryResolver serves sources held in memory, keyed by slash separated
// paths. The console uses it for sources typed at the prompt.
type MemoryResolver struct {
	mu    sync.RWMutex
	files map[string]string
}

func NewMemoryResolver(files map[string]string) *MemoryResolver {
	m := &MemoryResolver{files: map[string]string{}}
	for p, src := range files {
		m.files[path.Clean(p)] = src
	}
	return m
}

func (m *MemoryResolver) WriteFile(p, src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path.Clean(p)] = src
}

func (m *MemoryResolver) Resolve(importerPath, importPath string) (io.ReadCloser, string, error) {
	resolved := importPath
	if !path.IsAbs(importPath) && importerPath != importPath {
		resolved = path.Join(path.Dir(importerPath), importPath)
	}
	resolved = path.Clean(resolved)

	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.files[resolved]
	if !ok {
		return nil, "", fmt.Errorf("file not found: %s", resolved)
	}
	return io.NopCloser(strings.NewReader(src)), resolved, nil
}
