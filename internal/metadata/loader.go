package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefinitionCache stores parsed definitions keyed by directory hash.
type DefinitionCache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any) error
}

// Loader discovers definition directories, hashes them, and fills the
// registry from the cache or by parsing YAML.
type Loader struct {
	cache DefinitionCache
	reg   *Registry
}

// NewLoader creates a loader. cache may be nil, in which case every
// definition is parsed.
func NewLoader(cache DefinitionCache, reg *Registry) *Loader {
	return &Loader{cache: cache, reg: reg}
}

// Initialize loads all definitions under path into the registry. It runs
// at most once successfully; later calls are no-ops. Problems are returned
// rather than raised so the caller can report them as admin notices. A
// NoDefinitions or HashFailure problem leaves the registry uninitialized.
func (l *Loader) Initialize(ctx context.Context, path string) []*ConfigError {
	if l.reg.IsInitialized() {
		return nil
	}

	dirs, err := FindDefinitions(path)
	if err != nil {
		return []*ConfigError{{Kind: NoDefinitions, Err: err}}
	}

	hashes := make(map[string]string, len(dirs))
	for name, dir := range dirs {
		h, err := HashDirectory(dir)
		if err != nil {
			return []*ConfigError{{Kind: HashFailure, Type: name, Err: err}}
		}
		hashes[name] = h
	}

	defs, problems := l.collect(ctx, dirs, hashes)
	l.reg.Load(defs)
	zap.S().Infof("Loaded %d definitions from %s", len(defs), path)
	return problems
}

func (l *Loader) collect(ctx context.Context, dirs, hashes map[string]string) (map[string]*Definition, []*ConfigError) {
	defs := make(map[string]*Definition, len(dirs))
	var problems []*ConfigError

	for _, name := range sortedKeys(dirs) {
		hash := hashes[name]
		if l.cache != nil {
			var cached Definition
			if err := l.cache.Get(ctx, hash, &cached); err == nil {
				defs[name] = &cached
				continue
			}
		}

		def, err := parseDefinitionFile(dirs[name], name)
		if err != nil {
			problems = append(problems, &ConfigError{
				Kind: BadDefinition,
				Type: name,
				Err:  fmt.Errorf("definition could not be parsed and will be ignored: %w", err),
			})
			continue
		}
		if l.cache != nil {
			if err := l.cache.Set(ctx, hash, def); err != nil {
				zap.S().Warnf("cache definition %s: %v", name, err)
			}
		}
		defs[name] = def
	}
	return defs, problems
}

// FindDefinitions returns name -> directory for each non-hidden
// subdirectory of path that contains <name>/<name>.yml.
func FindDefinitions(path string) (map[string]string, error) {
	if path == "" {
		return nil, fmt.Errorf("no definitions path configured")
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions %q: %w", path, err)
	}

	found := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		dir := filepath.Join(path, name)
		if info, err := os.Stat(filepath.Join(dir, name+".yml")); err == nil && !info.IsDir() {
			found[name] = dir
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("no definitions found in %q", path)
	}
	return found, nil
}

func parseDefinitionFile(dir, name string) (*Definition, error) {
	data, err := os.ReadFile(filepath.Join(dir, name+".yml"))
	if err != nil {
		return nil, err
	}
	return ParseDefinition(data)
}
