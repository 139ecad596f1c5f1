package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"customfields/internal/metadata"
	"customfields/internal/notifier"
	"customfields/internal/storage"
)

type persistCall struct {
	EntityID int64
	Key      string
	Value    any
}

// recordingStorage wraps MemoryStorage and records Persist calls.
type recordingStorage struct {
	*storage.MemoryStorage
	calls   []persistCall
	failFor map[string]error
}

func newRecordingStorage() *recordingStorage {
	return &recordingStorage{MemoryStorage: storage.NewMemoryStorage(), failFor: map[string]error{}}
}

func (s *recordingStorage) Persist(ctx context.Context, entityID int64, key string, value any) error {
	s.calls = append(s.calls, persistCall{entityID, key, value})
	if err := s.failFor[key]; err != nil {
		return err
	}
	return s.MemoryStorage.Persist(ctx, entityID, key, value)
}

func (s *recordingStorage) persistCount(key string) int {
	n := 0
	for _, c := range s.calls {
		if c.Key == key {
			n++
		}
	}
	return n
}

type fakePlatform struct {
	registered map[string]Lifecycle
	builtin    map[string]bool
	removed    []string
	grants     map[string][]string
	shortcodes map[string]ShortcodeFunc
	archives   map[string]string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		registered: map[string]Lifecycle{},
		builtin:    map[string]bool{"post": true, "page": true},
		grants:     map[string][]string{},
		shortcodes: map[string]ShortcodeFunc{},
		archives:   map[string]string{},
	}
}

func (p *fakePlatform) IsTypeRegistered(name string) bool {
	_, ok := p.registered[name]
	return ok || p.builtin[name]
}

func (p *fakePlatform) RegisterType(name string, _ map[string]any, lc Lifecycle) error {
	if p.IsTypeRegistered(name) {
		return errors.New("already registered")
	}
	p.registered[name] = lc
	return nil
}

func (p *fakePlatform) RemoveMetabox(typeName, metaboxID string) {
	p.removed = append(p.removed, typeName+"/"+metaboxID)
}

func (p *fakePlatform) GrantRoleCapabilities(role string, caps []string) {
	p.grants[role] = append(p.grants[role], caps...)
}

func (p *fakePlatform) RegisterShortcode(name string, fn ShortcodeFunc) error {
	if _, ok := p.shortcodes[name]; ok {
		return fmt.Errorf("shortcode %s exists", name)
	}
	p.shortcodes[name] = fn
	return nil
}

func (p *fakePlatform) ReplaceArchive(typeName, pageSlug string) {
	p.archives[typeName] = pageSlug
}

type staticDefinitions map[string]*metadata.Definition

func (s staticDefinitions) GetDefinitions() (map[string]*metadata.Definition, error) {
	return s, nil
}

func allowAll() Permissions {
	return PermissionFunc(func(string, int64) bool { return true })
}

func allowOnly(caps ...string) Permissions {
	set := map[string]bool{}
	for _, c := range caps {
		set[c] = true
	}
	return PermissionFunc(func(c string, _ int64) bool { return set[c] })
}

type testEnv struct {
	storage  *recordingStorage
	platform *fakePlatform
	hooks    *Hooks
	center   *notifier.Center
}

func newTestEnv() *testEnv {
	return &testEnv{
		storage:  newRecordingStorage(),
		platform: newFakePlatform(),
		hooks:    NewHooks(),
		center:   notifier.NewCenter(0),
	}
}

func (e *testEnv) deps() Deps {
	return Deps{Storage: e.storage, Hooks: e.hooks, Platform: e.platform}
}

// build builds a single type from def and fails the test on any problem.
func (e *testEnv) build(t *testing.T, def *metadata.Definition) *Type {
	t.Helper()
	types, problems := BuildTypes(staticDefinitions{def.SingularName: def}, e.deps())
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	typ := types[def.SingularName]
	if typ == nil {
		t.Fatalf("type %s not built", def.SingularName)
	}
	return typ
}

func (e *testEnv) request(entityID int64, submitted map[string]string) *Request {
	return &Request{
		Ctx:       context.Background(),
		EntityID:  entityID,
		UserID:    "u1",
		Perms:     allowAll(),
		Submitted: submitted,
		Notifier:  e.center.Request(),
	}
}

func field(id, typ string) *metadata.FieldSpec {
	return &metadata.FieldSpec{ID: id, Type: typ}
}

func rules(keywords ...any) []metadata.Rule {
	out := make([]metadata.Rule, 0, len(keywords))
	for _, k := range keywords {
		switch v := k.(type) {
		case string:
			out = append(out, metadata.NewRule(v))
		case []any:
			out = append(out, metadata.NewRule(v[0].(string), v[1:]...))
		}
	}
	return out
}

func personDef(fields []*metadata.FieldSpec, boxes ...*metadata.MetaboxSpec) *metadata.Definition {
	return &metadata.Definition{
		SingularName: "person",
		PluralName:   "people",
		Fields:       fields,
		Metaboxes:    boxes,
	}
}

func box(id string, fields ...string) *metadata.MetaboxSpec {
	return &metadata.MetaboxSpec{ID: id, Title: id, Fields: fields}
}
