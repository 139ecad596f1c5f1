package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type memoryCache struct {
	items map[string][]byte
	gets  int
	sets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

var errMiss = errors.New("miss")

func (c *memoryCache) Get(_ context.Context, key string, dst any) error {
	c.gets++
	data, ok := c.items[key]
	if !ok {
		return errMiss
	}
	return json.Unmarshal(data, dst)
}

func (c *memoryCache) Set(_ context.Context, key string, value any) error {
	c.sets++
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = data
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func sampleDefinitions(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "person", "person.yml"), "singular_name: person\nplural_name: people\npublic: true\n")
	writeFile(t, filepath.Join(root, "project", "project.yml"), "singular_name: project\nplural_name: projects\n")
	// Skipped: hidden, no matching yml, plain file.
	writeFile(t, filepath.Join(root, ".hidden", ".hidden.yml"), "singular_name: hidden\n")
	writeFile(t, filepath.Join(root, "notes", "readme.yml"), "singular_name: notes\n")
	writeFile(t, filepath.Join(root, "stray.yml"), "singular_name: stray\n")
	return root
}

func TestFindDefinitions(t *testing.T) {
	root := sampleDefinitions(t)
	found, err := FindDefinitions(root)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 definitions, got %v", found)
	}
	if found["person"] != filepath.Join(root, "person") {
		t.Fatalf("unexpected person dir %q", found["person"])
	}
}

func TestFindDefinitions_Empty(t *testing.T) {
	if _, err := FindDefinitions(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := FindDefinitions(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing path")
	}
	if _, err := FindDefinitions(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without definitions")
	}
}

func TestHashDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "person")
	writeFile(t, filepath.Join(dir, "person.yml"), "singular_name: person\n")

	h1, err := HashDirectory(dir)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if len(h1) != 40 {
		t.Fatalf("expected 40 hex chars, got %q", h1)
	}
	again, _ := HashDirectory(dir)
	if again != h1 {
		t.Fatal("expected stable hash")
	}

	writeFile(t, filepath.Join(dir, ".swp"), "ignored")
	if h, _ := HashDirectory(dir); h != h1 {
		t.Fatal("expected hidden files to be ignored")
	}

	writeFile(t, filepath.Join(dir, "person.yml"), "singular_name: someone\n")
	h2, _ := HashDirectory(dir)
	if h2 == h1 {
		t.Fatal("expected content change to change hash")
	}

	writeFile(t, filepath.Join(dir, "nested", "extra.txt"), "x")
	h3, _ := HashDirectory(dir)
	if h3 == h2 {
		t.Fatal("expected nested directory to change hash")
	}

	// Same contents under a different directory name hash differently.
	other := filepath.Join(root, "people")
	if err := os.Rename(dir, other); err != nil {
		t.Fatalf("rename: %v", err)
	}
	h4, _ := HashDirectory(other)
	if h4 == h3 {
		t.Fatal("expected directory name to change hash")
	}
}

func TestHashDirectory_Failures(t *testing.T) {
	if _, err := HashDirectory(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	file := filepath.Join(t.TempDir(), "file.yml")
	writeFile(t, file, "x")
	if _, err := HashDirectory(file); err == nil {
		t.Fatal("expected error for non-directory")
	}
}

func TestLoader_InitializeParsesAndCaches(t *testing.T) {
	root := sampleDefinitions(t)
	cache := newMemoryCache()
	reg := NewRegistry()

	if _, err := reg.GetDefinitions(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}

	problems := NewLoader(cache, reg).Initialize(context.Background(), root)
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	defs, err := reg.GetDefinitions()
	if err != nil {
		t.Fatalf("get definitions: %v", err)
	}
	if len(defs) != 2 || defs["person"].PluralName != "people" {
		t.Fatalf("unexpected definitions %v", defs)
	}
	if cache.sets != 2 {
		t.Fatalf("expected 2 cache writes, got %d", cache.sets)
	}

	// A fresh registry with a warm cache reads from the cache only.
	reg2 := NewRegistry()
	if problems := NewLoader(cache, reg2).Initialize(context.Background(), root); len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if cache.sets != 2 {
		t.Fatalf("expected no new cache writes, got %d", cache.sets)
	}
	if reg2.GetDefinition("person").Registration["public"] != true {
		t.Fatal("expected cached definition to keep registration payload")
	}
}

func TestLoader_InitializeOnce(t *testing.T) {
	root := sampleDefinitions(t)
	cache := newMemoryCache()
	reg := NewRegistry()
	loader := NewLoader(cache, reg)

	loader.Initialize(context.Background(), root)
	gets := cache.gets
	if problems := loader.Initialize(context.Background(), root); problems != nil {
		t.Fatalf("expected no-op, got %v", problems)
	}
	if cache.gets != gets {
		t.Fatal("expected second Initialize to skip loading")
	}
}

func TestLoader_NoDefinitions(t *testing.T) {
	reg := NewRegistry()
	problems := NewLoader(nil, reg).Initialize(context.Background(), filepath.Join(t.TempDir(), "none"))
	if len(problems) != 1 || problems[0].Kind != NoDefinitions {
		t.Fatalf("expected one NoDefinitions problem, got %v", problems)
	}
	if reg.IsInitialized() {
		t.Fatal("expected registry to stay uninitialized")
	}
}

func TestLoader_ParseFailureSkipsDefinition(t *testing.T) {
	root := sampleDefinitions(t)
	writeFile(t, filepath.Join(root, "broken", "broken.yml"), "singular_name: [oops\n")

	reg := NewRegistry()
	problems := NewLoader(newMemoryCache(), reg).Initialize(context.Background(), root)
	if len(problems) != 1 {
		t.Fatalf("expected one problem, got %v", problems)
	}
	if problems[0].Kind != BadDefinition || problems[0].Type != "broken" {
		t.Fatalf("expected BadDefinition for broken, got %+v", problems[0])
	}
	if !reg.IsInitialized() {
		t.Fatal("expected registry to be initialized with the good definitions")
	}
	if reg.GetDefinition("broken") != nil {
		t.Fatal("expected broken definition to be skipped")
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "person" || names[1] != "project" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestConfigError_Message(t *testing.T) {
	err := &ConfigError{Kind: BadValidator, Type: "person", Field: "email", Keyword: "bogus"}
	want := `BadValidator: type "person", field "email", keyword "bogus"`
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if !IsConfigKind(err, BadValidator) {
		t.Fatal("expected IsConfigKind to match")
	}
}
