package loader

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/parser"
)

// LoadResult holds the outcome of a loading operation.
type LoadResult struct {
	RootFile    *decl.FileDecl            // The AST for the initially requested root file.
	LoadedFiles map[string]*decl.FileDecl // All files loaded, keyed by canonical path.
	Order       []string                  // Canonical paths, imports before their importers

	// Merged holds the declarations of every loaded file in Order, ready
	// for lowering.
	Merged *decl.FileDecl
}

// Loader handles parsing and recursively loading imported FSL files.
type Loader struct {
	parser   Parser
	resolver FileResolver
	maxDepth int

	// Internal state during a load operation
	mutex       sync.Mutex
	loadedFiles map[string]*decl.FileDecl
	pending     map[string]bool // files on the current import stack
	order       []string
}

// NewLoader creates a new FSL loader. A nil parser or resolver selects the
// default one. maxDepth bounds the import recursion (0 means no limit, 1
// means root only).
func NewLoader(p Parser, resolver FileResolver, maxDepth int) *Loader {
	if p == nil {
		p = ParserFunc(parser.Parse)
	}
	if resolver == nil {
		resolver = NewDefaultFileResolver()
	}
	return &Loader{
		parser:   p,
		resolver: resolver,
		maxDepth: maxDepth,
	}
}

// LoadRootFile parses the root file, recursively loads its imports and
// merges them into one file.
func (l *Loader) LoadRootFile(rootPath string) (*LoadResult, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	// Reset state for this load operation
	l.loadedFiles = make(map[string]*decl.FileDecl)
	l.pending = make(map[string]bool)
	l.order = nil

	rootFile, err := l.loadFileRecursive(rootPath, rootPath, decl.Location{}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load root file '%s': %w", rootPath, err)
	}

	merged := &decl.FileDecl{FullPath: rootFile.FullPath}
	for _, path := range l.order {
		if err := merged.Merge(l.loadedFiles[path]); err != nil {
			return nil, decl.WithFile(err, path)
		}
	}
	slog.Debug("loaded files", "root", rootFile.FullPath, "files", len(l.order))
	return &LoadResult{
		RootFile:    rootFile,
		LoadedFiles: l.loadedFiles,
		Order:       l.order,
		Merged:      merged,
	}, nil
}

// loadFileRecursive handles the actual loading and parsing logic. at is
// the position of the import statement in the importer.
func (l *Loader) loadFileRecursive(importerPath, filePath string, at decl.Location, depth int) (*decl.FileDecl, error) {
	// depth 0 is the root, depth 1 is its direct imports, etc.
	if l.maxDepth > 0 && depth >= l.maxDepth {
		return nil, decl.WithFile(decl.Errorf(decl.RecursionError, at, "",
			"max import depth (%d) exceeded near '%s'", l.maxDepth, filePath), importerPath)
	}

	contentReader, canonicalPath, err := l.resolver.Resolve(importerPath, filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve import '%s' from '%s': %w", filePath, importerPath, err)
	}
	defer contentReader.Close()

	if fileDecl, found := l.loadedFiles[canonicalPath]; found {
		return fileDecl, nil
	}
	if l.pending[canonicalPath] {
		return nil, decl.WithFile(decl.Errorf(decl.RecursionError, at, "",
			"circular import: '%s' is already being loaded", canonicalPath), importerPath)
	}
	l.pending[canonicalPath] = true
	defer delete(l.pending, canonicalPath)

	fileDecl, err := l.parser.Parse(contentReader, canonicalPath)
	if err != nil {
		return nil, err
	}
	if err := fileDecl.Resolve(); err != nil {
		return nil, decl.WithFile(err, canonicalPath)
	}

	for _, importDecl := range fileDecl.Imports {
		if importDecl.Path == nil {
			return nil, decl.WithFile(decl.Errorf(decl.SyntaxViolation, importDecl.Pos(), "", "import without a path"), canonicalPath)
		}
		importPathStr, ok := importDecl.Path.Value.(string)
		if !ok {
			return nil, decl.WithFile(decl.Errorf(decl.SyntaxViolation, importDecl.Pos(), "", "import path is not a string"), canonicalPath)
		}
		if _, err := l.loadFileRecursive(canonicalPath, importPathStr, importDecl.Pos(), depth+1); err != nil {
			return nil, fmt.Errorf("failed to load import '%s' from '%s': %w", importPathStr, canonicalPath, err)
		}
	}

	// Stored after its imports so Order lists dependencies first
	l.loadedFiles[canonicalPath] = fileDecl
	l.order = append(l.order, canonicalPath)
	return fileDecl, nil
}
