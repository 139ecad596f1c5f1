package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customfields/internal/auth"
	"customfields/internal/config"
	"customfields/internal/engine"
	"customfields/internal/instrument"
	"customfields/internal/metadata"
	"customfields/internal/notifier"
	"customfields/internal/platform"
	"customfields/internal/storage"
	"customfields/internal/store"
)

const testSecret = "admin-secret"

type staticSource map[string]*metadata.Definition

func (s staticSource) GetDefinitions() (map[string]*metadata.Definition, error) { return s, nil }

type testServer struct {
	app         *fiber.App
	center      *notifier.Center
	entities    *platform.Entities
	meta        *storage.MetaStorage
	adminToken  string
	editorToken string
}

func personDefinition() *metadata.Definition {
	asc := &metadata.ColumnSort{Order: "ASC"}
	return &metadata.Definition{
		SingularName:           "person",
		PluralName:             "people",
		Registration:           map[string]any{"public": true},
		CreateShortcode:        true,
		ReplaceArchiveWithPage: "our-people",
		Fields: []*metadata.FieldSpec{
			{ID: "email", Name: "Email", Type: metadata.FieldTypeText, Validate: []metadata.Rule{metadata.NewRule("email")}},
			{ID: "nickname", Name: "Nickname", Type: metadata.FieldTypeText, Sanitize: []metadata.Rule{metadata.NewRule("trim")}},
		},
		Metaboxes: []*metadata.MetaboxSpec{{ID: "contact", Title: "Contact", Fields: []string{"email", "nickname"}}},
		Columns:   []*metadata.ColumnSpec{{ID: "email", Header: "Email", Sort: asc}},
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "admin"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))

	p := platform.New(map[string][]string{"editor": {"read"}})
	meta := storage.NewMetaStorage(s)
	hooks := engine.NewHooks().OnShortcode("person", "people", func(attrs map[string]string, content, name string) string {
		return fmt.Sprintf("<ul class=%q>%s</ul>", name+"-"+attrs["role"], content)
	})
	types, problems := engine.BuildTypes(staticSource{"person": personDefinition()}, engine.Deps{
		Storage:  meta,
		Hooks:    hooks,
		Platform: p,
	})
	require.Empty(t, problems)

	center := notifier.NewCenter(time.Minute)
	entities := platform.NewEntities(s)
	h := NewHandler(p, entities, types, center, instrument.NewEventReader(s.DB, s.Dialect))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, h, auth.Middleware(testSecret), auth.RequireAdmin())

	adminToken, err := auth.GenerateAccessToken(&metadata.UserContext{ID: "admin-1", Roles: []string{metadata.AdministratorRole}}, testSecret, time.Minute)
	require.NoError(t, err)
	editorToken, err := auth.GenerateAccessToken(&metadata.UserContext{ID: "editor-1", Roles: []string{"editor"}}, testSecret, time.Minute)
	require.NoError(t, err)

	return &testServer{app: app, center: center, entities: entities, meta: meta, adminToken: adminToken, editorToken: editorToken}
}

func (ts *testServer) do(t *testing.T, method, path, token, contentType, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func (ts *testServer) create(t *testing.T, title string) int64 {
	t.Helper()
	status, body := ts.do(t, "POST", "/admin/types/person", ts.adminToken, fiber.MIMEApplicationJSON, fmt.Sprintf(`{"post_title": %q}`, title))
	require.Equal(t, http.StatusCreated, status, body)
	var out struct {
		Data platform.Entity   `json:"data"`
		Save engine.SaveResult `json:"save"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, engine.SkipNotUpdate, out.Save.Skipped)
	return out.Data.ID
}

func form(values map[string]string) string {
	v := url.Values{}
	for k, val := range values {
		v.Set(k, val)
	}
	return v.Encode()
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(t, "GET", "/health", "", "", "")
	assert.Equal(t, 200, status)
	assert.JSONEq(t, `{"status":"ok","types":1}`, body)
}

func TestListTypes(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, "GET", "/admin/types", "", "", "")
	assert.Equal(t, 401, status)

	status, body := ts.do(t, "GET", "/admin/types", ts.adminToken, "", "")
	require.Equal(t, 200, status, body)
	var out struct {
		Data []typeInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out.Data, 1)

	info := out.Data[0]
	assert.Equal(t, "person", info.Name)
	assert.Equal(t, "people", info.Plural)
	assert.Equal(t, true, info.Registration["public"])
	assert.True(t, info.Shortcode)
	assert.Equal(t, "our-people", info.ArchivePage)
	assert.Equal(t, []string{"email"}, info.Sortable)

	ids := make([]string, len(info.Columns))
	for i, c := range info.Columns {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"cb", "title", "email", "author", "date"}, ids)
}

func TestSaveAndEditForm(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, "Ada")
	path := fmt.Sprintf("/admin/types/person/%d", id)

	status, body := ts.do(t, "POST", path, ts.adminToken, fiber.MIMEApplicationForm,
		form(map[string]string{TitleKey: "Ada Lovelace", "email": "ada@example.com", "nickname": "  ada  "}))
	require.Equal(t, 200, status, body)

	v, err := ts.meta.Retrieve(context.Background(), id, "nickname")
	require.NoError(t, err)
	assert.Equal(t, "ada", v)

	ent, err := ts.entities.Get(context.Background(), "person", id)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", ent.Title)

	status, body = ts.do(t, "GET", path+"/edit", ts.adminToken, "", "")
	require.Equal(t, 200, status)
	assert.Contains(t, body, `value="ada@example.com"`)
	assert.NotContains(t, body, "customfields-warnings")
}

func TestSaveInvalidShowsWarningsOnce(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, "Bob")
	path := fmt.Sprintf("/admin/types/person/%d", id)

	status, body := ts.do(t, "POST", path, ts.adminToken, fiber.MIMEApplicationJSON, `{"email": "not-an-email", "nickname": "bob"}`)
	require.Equal(t, 422, status, body)
	var out engine.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "SAVE_INCOMPLETE", out.Error.Code)
	require.Len(t, out.Error.Details, 1)
	assert.Equal(t, "email", out.Error.Details[0].Field)

	v, err := ts.meta.Retrieve(context.Background(), id, "email")
	require.NoError(t, err)
	assert.Equal(t, "", v, "invalid value is not stored")

	_, first := ts.do(t, "GET", path+"/edit", ts.adminToken, "", "")
	assert.Contains(t, first, "These fields were not saved: Email.")
	assert.Contains(t, first, "customfields-has-warning")

	_, second := ts.do(t, "GET", path+"/edit", ts.adminToken, "", "")
	assert.NotContains(t, second, "These fields were not saved")
}

func TestSaveSkips(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, "Cy")
	path := fmt.Sprintf("/admin/types/person/%d", id)

	status, body := ts.do(t, "POST", path+"?autosave=1", ts.adminToken, fiber.MIMEApplicationForm, form(map[string]string{"email": "cy@example.com"}))
	require.Equal(t, 200, status)
	assert.Contains(t, body, `"skipped":"autosave"`)
	v, err := ts.meta.Retrieve(context.Background(), id, "email")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	status, _ = ts.do(t, "POST", path, ts.editorToken, fiber.MIMEApplicationForm, form(map[string]string{"email": "cy@example.com"}))
	assert.Equal(t, 403, status)
}

func TestRouteErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"unknown type", "GET", "/admin/types/project", ts.adminToken, 404},
		{"missing entity", "GET", "/admin/types/person/999/edit", ts.adminToken, 404},
		{"bad id", "POST", "/admin/types/person/abc", ts.adminToken, 422},
		{"editor cannot list", "GET", "/admin/types/person", ts.editorToken, 403},
		{"editor cannot create", "POST", "/admin/types/person", ts.editorToken, 403},
		{"unsortable column", "GET", "/admin/types/person?orderby=nickname", ts.adminToken, 422},
		{"events need admin", "GET", "/admin/events", ts.editorToken, 403},
		{"unknown trace", "GET", "/admin/events/trace/nope", ts.adminToken, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, tt.method, tt.path, tt.token, "", "")
			assert.Equal(t, tt.want, status, body)
		})
	}
}

func TestListEntities_SortsByColumn(t *testing.T) {
	ts := newTestServer(t)
	for title, email := range map[string]string{"Ada": "b@example.com", "Bob": "a@example.com", "Cy": ""} {
		id := ts.create(t, title)
		if email != "" {
			status, body := ts.do(t, "POST", fmt.Sprintf("/admin/types/person/%d", id), ts.adminToken,
				fiber.MIMEApplicationForm, form(map[string]string{"email": email}))
			require.Equal(t, 200, status, body)
		}
	}

	titles := func(query string) []string {
		status, body := ts.do(t, "GET", "/admin/types/person"+query, ts.adminToken, "", "")
		require.Equal(t, 200, status, body)
		var out struct {
			Data []struct {
				Title   string            `json:"title"`
				Columns map[string]string `json:"columns"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &out))
		names := make([]string, len(out.Data))
		for i, row := range out.Data {
			names[i] = row.Title
			assert.Contains(t, row.Columns, "email")
		}
		return names
	}

	assert.Equal(t, []string{"Bob", "Ada", "Cy"}, titles("?orderby=email"))
	assert.Equal(t, []string{"Ada", "Bob", "Cy"}, titles("?orderby=email&order=desc"))
}

func TestShortcodeRoutes(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, "GET", "/shortcode/people?role=staff&content=hi", "", "", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, `<ul class="people-staff">hi</ul>`, body)

	status, _ = ts.do(t, "GET", "/shortcode/projects", "", "", "")
	assert.Equal(t, 404, status)

	status, body = ts.do(t, "POST", "/shortcode", "", "text/plain", `before [people role="x"]in[/people] after`)
	assert.Equal(t, 200, status)
	assert.Equal(t, `before <ul class="people-x">in</ul> after`, body)
}

func TestArchive(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(t, "GET", "/archive/person", "", "", "")
	assert.Equal(t, 200, status)
	assert.JSONEq(t, `{"data":{"type":"person","page":"our-people"}}`, body)

	status, _ = ts.do(t, "GET", "/archive/project", "", "", "")
	assert.Equal(t, 404, status)
}

func TestNotices(t *testing.T) {
	ts := newTestServer(t)
	ts.center.QueueAdminNotice("CustomFields: broken definition")
	notices := ts.center.AdminNotices()
	require.Len(t, notices, 1)

	status, body := ts.do(t, "GET", "/admin/notices", ts.editorToken, "", "")
	require.Equal(t, 200, status)
	assert.Contains(t, body, "broken definition")

	status, _ = ts.do(t, "DELETE", "/admin/notices/"+notices[0].ID, ts.editorToken, "", "")
	assert.Equal(t, 403, status)
	status, _ = ts.do(t, "DELETE", "/admin/notices/"+notices[0].ID, ts.adminToken, "", "")
	assert.Equal(t, 204, status)
	status, _ = ts.do(t, "DELETE", "/admin/notices/"+notices[0].ID, ts.adminToken, "", "")
	assert.Equal(t, 404, status)
	assert.Empty(t, ts.center.AdminNotices())
}

func TestListEvents_Empty(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(t, "GET", "/admin/events?source=business", ts.adminToken, "", "")
	require.Equal(t, 200, status, body)
	assert.JSONEq(t, `{"data":[],"pagination":{"page":1,"total":0}}`, body)
}

func TestFormValue(t *testing.T) {
	assert.Equal(t, "", formValue(nil))
	assert.Equal(t, "1", formValue(true))
	assert.Equal(t, "", formValue(false))
	assert.Equal(t, "3", formValue(float64(3)))
	assert.Equal(t, "2.5", formValue(2.5))
	assert.Equal(t, `["a","b"]`, formValue([]any{"a", "b"}))
}
