package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"customfields/internal/auth"
	"customfields/internal/engine"
	"customfields/internal/instrument"
	"customfields/internal/metadata"
	"customfields/internal/notifier"
	"customfields/internal/platform"
	"customfields/internal/store"
)

// DefaultColumns are the list-screen columns every type starts with.
var DefaultColumns = []engine.ColumnHeader{
	{ID: "cb", Header: ""},
	{ID: "title", Header: "Title"},
	{ID: "author", Header: "Author"},
	{ID: "date", Header: "Date"},
}

// TitleKey is the submitted key holding the entity title. It is never a
// field value.
const TitleKey = "post_title"

type Handler struct {
	platform *platform.Platform
	entities *platform.Entities
	types    map[string]*engine.Type
	center   *notifier.Center
	events   *instrument.EventReader
}

func NewHandler(p *platform.Platform, entities *platform.Entities, types map[string]*engine.Type, center *notifier.Center, events *instrument.EventReader) *Handler {
	return &Handler{platform: p, entities: entities, types: types, center: center, events: events}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "types": len(h.types)})
}

func (h *Handler) resolveType(c *fiber.Ctx) (*engine.Type, error) {
	name := c.Params("type")
	t, ok := h.types[name]
	if !ok {
		return nil, engine.UnknownTypeError(name)
	}
	return t, nil
}

func entityID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, engine.ValidationError("id must be a positive integer")
	}
	return id, nil
}

// request builds the per-request engine state for the authenticated user.
func (h *Handler) request(c *fiber.Ctx, id int64) *engine.Request {
	user := auth.GetUser(c)
	req := &engine.Request{
		Ctx:      c.UserContext(),
		EntityID: id,
		Perms:    h.platform.Permissions(user),
		Notifier: h.center.Request(),
	}
	if user != nil {
		req.UserID = user.ID
		req.Ctx = instrument.WithUserID(req.Ctx, user.ID)
	}
	return req
}

type typeInfo struct {
	Name             string                `json:"name"`
	Plural           string                `json:"plural"`
	Registration     map[string]any        `json:"registration,omitempty"`
	Columns          []engine.ColumnHeader `json:"columns"`
	Sortable         []string              `json:"sortable"`
	RemovedMetaboxes []string              `json:"removed_metaboxes"`
	Shortcode        bool                  `json:"shortcode"`
	ArchivePage      string                `json:"archive_page,omitempty"`
}

func (h *Handler) ListTypes(c *fiber.Ctx) error {
	names := make([]string, 0, len(h.types))
	for name := range h.types {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]typeInfo, 0, len(names))
	for _, name := range names {
		t := h.types[name]
		reg, _ := h.platform.Registration(name)
		archive, _ := h.platform.ArchivePage(name)
		sortable := t.SortableColumns()
		if sortable == nil {
			sortable = []string{}
		}
		out = append(out, typeInfo{
			Name:             t.Name,
			Plural:           t.Plural,
			Registration:     reg,
			Columns:          t.AddColumns(DefaultColumns),
			Sortable:         sortable,
			RemovedMetaboxes: h.platform.RemovedMetaboxes(name),
			Shortcode:        t.Shortcode() != nil,
			ArchivePage:      archive,
		})
	}
	return c.JSON(fiber.Map{"data": out})
}

type listRow struct {
	*platform.Entity
	Columns map[string]string `json:"columns"`
}

// ListEntities handles GET /admin/types/:type?orderby=&order=&page=&per_page=
func (h *Handler) ListEntities(c *fiber.Ctx) error {
	t, err := h.resolveType(c)
	if err != nil {
		return err
	}
	if !h.platform.Can(auth.GetUser(c), metadata.EditCapability(t.Plural)) {
		return engine.ForbiddenError("You cannot list " + t.Plural)
	}

	q := platform.ListQuery{Type: t.Name, Order: c.Query("order")}
	if orderby := c.Query("orderby"); orderby != "" {
		col := t.SortColumn(orderby)
		if col == nil {
			return engine.ValidationError("Column is not sortable: " + orderby)
		}
		q.OrderByMeta = col.SortKey()
		if q.Order == "" {
			q.Order = col.SortOrder()
		}
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))
	q.Limit, _ = strconv.Atoi(c.Query("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if q.Limit < 1 {
		q.Limit = 50
	}
	q.Offset = (page - 1) * q.Limit

	ents, err := h.entities.List(c.UserContext(), q)
	if err != nil {
		return err
	}
	rows := make([]listRow, 0, len(ents))
	for _, ent := range ents {
		cols := make(map[string]string, len(t.Columns()))
		for _, col := range t.Columns() {
			cols[col.ID()] = col.Content(c.UserContext(), ent.ID)
		}
		rows = append(rows, listRow{Entity: ent, Columns: cols})
	}
	return c.JSON(fiber.Map{
		"data":    rows,
		"columns": t.AddColumns(DefaultColumns),
		"pagination": fiber.Map{
			"page":     page,
			"per_page": q.Limit,
		},
	})
}

// CreateEntity inserts an entity and fires the creation save event, which
// stores no field values.
func (h *Handler) CreateEntity(c *fiber.Ctx) error {
	t, err := h.resolveType(c)
	if err != nil {
		return err
	}
	if !h.platform.Can(auth.GetUser(c), metadata.EditCapability(t.Plural)) {
		return engine.ForbiddenError("You cannot create " + t.Plural)
	}
	submitted, err := parseSubmission(c)
	if err != nil {
		return err
	}
	req := h.request(c, 0)
	req.Submitted = submitted
	ent, res, err := h.platform.Create(c.UserContext(), h.entities, t.Name, submitted[TitleKey], req)
	if err != nil {
		return mapError(err, t.Name, 0)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ent, "save": res})
}

// EditForm renders the edit screen body of an existing entity.
func (h *Handler) EditForm(c *fiber.Ctx) error {
	t, err := h.resolveType(c)
	if err != nil {
		return err
	}
	id, err := entityID(c)
	if err != nil {
		return err
	}
	if _, err := h.entities.Get(c.UserContext(), t.Name, id); err != nil {
		return mapError(err, t.Name, id)
	}
	req := h.request(c, id)
	if !req.Can(metadata.EditCapability(t.Plural)) {
		return engine.ForbiddenError("You cannot edit " + t.Plural)
	}
	form, err := h.platform.EditForm(t.Name, req)
	if err != nil {
		return mapError(err, t.Name, id)
	}
	c.Type("html")
	return c.SendString(form.Render())
}

// SaveEntity handles the edit form submit. ?autosave=1 marks an autosave.
func (h *Handler) SaveEntity(c *fiber.Ctx) error {
	t, err := h.resolveType(c)
	if err != nil {
		return err
	}
	id, err := entityID(c)
	if err != nil {
		return err
	}
	if _, err := h.entities.Get(c.UserContext(), t.Name, id); err != nil {
		return mapError(err, t.Name, id)
	}
	submitted, err := parseSubmission(c)
	if err != nil {
		return err
	}

	req := h.request(c, id)
	req.Submitted = submitted
	req.Autosave = c.QueryBool("autosave")
	res, err := h.platform.Save(t.Name, req, true)
	if err != nil {
		return mapError(err, t.Name, id)
	}

	switch {
	case res.Skipped == engine.SkipForbidden:
		return engine.ForbiddenError("You cannot edit " + t.Plural)
	case res.Skipped != "":
		return c.JSON(fiber.Map{"data": res})
	}
	if err := h.entities.Touch(c.UserContext(), id, submitted[TitleKey]); err != nil {
		return mapError(err, t.Name, id)
	}
	if !res.OK() {
		return engine.SaveFailedError(res)
	}
	return c.JSON(fiber.Map{"data": res})
}

// parseSubmission reads a urlencoded/multipart form or a flat JSON object.
// Field ids missing from the submission are absent from the map.
func parseSubmission(c *fiber.Ctx) (map[string]string, error) {
	out := make(map[string]string)
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var body map[string]any
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &body); err != nil {
				return nil, engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
			}
		}
		for k, v := range body {
			out[k] = formValue(v)
		}
		return out, nil
	}
	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		out[string(k)] = string(v)
	})
	if form, err := c.MultipartForm(); err == nil {
		for k, vs := range form.Value {
			if len(vs) > 0 {
				out[k] = vs[0]
			}
		}
	}
	return out, nil
}

func formValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "1"
		}
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func (h *Handler) ListNotices(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.center.AdminNotices()})
}

func (h *Handler) DismissNotice(c *fiber.Ctx) error {
	if !h.center.DismissNotice(c.Params("id")) {
		return engine.NewAppError("NOT_FOUND", 404, "Notice not found: "+c.Params("id"))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Shortcode renders GET /shortcode/:name; query parameters become
// attributes except content, which is the enclosed content.
func (h *Handler) Shortcode(c *fiber.Ctx) error {
	attrs := make(map[string]string)
	for k, v := range c.Queries() {
		if k != "content" {
			attrs[strings.ToLower(k)] = v
		}
	}
	out, err := h.platform.RenderShortcode(c.Params("name"), attrs, c.Query("content"))
	if err != nil {
		return engine.NewAppError("NOT_FOUND", 404, fmt.Sprintf("Unknown shortcode: %s", c.Params("name")))
	}
	c.Type("html")
	return c.SendString(out)
}

// ExpandShortcodes expands every shortcode in the request body.
func (h *Handler) ExpandShortcodes(c *fiber.Ctx) error {
	c.Type("html")
	return c.SendString(h.platform.DoShortcodes(string(c.Body())))
}

// Archive serves the type's archive: the configured replacement page, or
// the list of entities.
func (h *Handler) Archive(c *fiber.Ctx) error {
	t, err := h.resolveType(c)
	if err != nil {
		return err
	}
	if slug, ok := h.platform.ArchivePage(t.Name); ok {
		return c.JSON(fiber.Map{"data": fiber.Map{"type": t.Name, "page": slug}})
	}
	ents, err := h.entities.List(c.UserContext(), platform.ListQuery{Type: t.Name})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"type": t.Name, "entities": ents}})
}

func (h *Handler) ListEvents(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("per_page", "50"))
	rows, total, err := h.events.List(c.UserContext(), instrument.EventFilter{
		Source:    c.Query("source"),
		Component: c.Query("component"),
		Action:    c.Query("action"),
		Entity:    c.Query("entity"),
		EventType: c.Query("event_type"),
		TraceID:   c.Query("trace_id"),
		Page:      page,
		PerPage:   perPage,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":       rows,
		"pagination": fiber.Map{"page": max(page, 1), "total": total},
	})
}

func (h *Handler) GetTrace(c *fiber.Ctx) error {
	rows, err := h.events.Trace(c.UserContext(), c.Params("traceId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.NewAppError("NOT_FOUND", 404, "Trace not found: "+c.Params("traceId"))
		}
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"trace_id": c.Params("traceId"), "spans": rows}})
}
