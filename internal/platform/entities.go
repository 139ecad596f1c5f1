package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"customfields/internal/store"
)

// Entity is one row of _posts.
type Entity struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListQuery selects entities of one type. OrderByMeta sorts by a post meta
// value; entities without that key sort last.
type ListQuery struct {
	Type        string
	OrderByMeta string
	Order       string
	Limit       int
	Offset      int
}

// Entities is the _posts repository.
type Entities struct {
	db      store.Querier
	dialect store.Dialect
}

func NewEntities(s *store.Store) *Entities {
	return &Entities{db: s.DB, dialect: s.Dialect}
}

func (e *Entities) Create(ctx context.Context, typeName, title string) (*Entity, error) {
	pb := e.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("INSERT INTO _posts (type, title) VALUES (%s, %s) RETURNING id", pb.Add(typeName), pb.Add(title))
	var id int64
	if err := e.db.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&id); err != nil {
		return nil, fmt.Errorf("create %s: %w", typeName, store.MapError(e.dialect, err))
	}
	return e.Get(ctx, typeName, id)
}

// Get returns store.ErrNotFound when no entity of the type has the id.
func (e *Entities) Get(ctx context.Context, typeName string, id int64) (*Entity, error) {
	pb := e.dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, e.db,
		fmt.Sprintf("SELECT id, type, title, status, created_at, updated_at FROM _posts WHERE id = %s AND type = %s", pb.Add(id), pb.Add(typeName)),
		pb.Params()...)
	if err != nil {
		return nil, err
	}
	return entityFromRow(row), nil
}

// Touch updates the title (when non-empty) and the modification time.
func (e *Entities) Touch(ctx context.Context, id int64, title string) error {
	pb := e.dialect.NewParamBuilder()
	set := "updated_at = " + e.dialect.NowExpr()
	if title != "" {
		set += ", title = " + pb.Add(title)
	}
	n, err := store.Exec(ctx, e.db, fmt.Sprintf("UPDATE _posts SET %s WHERE id = %s", set, pb.Add(id)), pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (e *Entities) List(ctx context.Context, q ListQuery) ([]*Entity, error) {
	pb := e.dialect.NewParamBuilder()
	var sb strings.Builder
	sb.WriteString("SELECT p.id, p.type, p.title, p.status, p.created_at, p.updated_at FROM _posts p")
	if q.OrderByMeta != "" {
		fmt.Fprintf(&sb, " LEFT JOIN _postmeta m ON m.entity_id = p.id AND m.meta_key = %s", pb.Add(q.OrderByMeta))
	}
	fmt.Fprintf(&sb, " WHERE p.type = %s", pb.Add(q.Type))

	dir := "DESC"
	if strings.EqualFold(q.Order, "ASC") {
		dir = "ASC"
	}
	if q.OrderByMeta != "" {
		fmt.Fprintf(&sb, " ORDER BY CASE WHEN m.meta_value IS NULL THEN 1 ELSE 0 END, m.meta_value %s, p.id DESC", dir)
	} else {
		fmt.Fprintf(&sb, " ORDER BY p.id %s", dir)
	}

	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	fmt.Fprintf(&sb, " LIMIT %s OFFSET %s", pb.Add(limit), pb.Add(max(q.Offset, 0)))

	rows, err := store.QueryRows(ctx, e.db, sb.String(), pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Type, err)
	}
	out := make([]*Entity, 0, len(rows))
	for _, row := range rows {
		out = append(out, entityFromRow(row))
	}
	return out, nil
}

func (e *Entities) Delete(ctx context.Context, typeName string, id int64) error {
	pb := e.dialect.NewParamBuilder()
	n, err := store.Exec(ctx, e.db, fmt.Sprintf("DELETE FROM _posts WHERE id = %s AND type = %s", pb.Add(id), pb.Add(typeName)), pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func entityFromRow(row map[string]any) *Entity {
	ent := &Entity{}
	ent.ID, _ = store.ToInt64(row["id"])
	ent.Type, _ = row["type"].(string)
	ent.Title, _ = row["title"].(string)
	ent.Status, _ = row["status"].(string)
	ent.CreatedAt, _ = row["created_at"].(time.Time)
	ent.UpdatedAt, _ = row["updated_at"].(time.Time)
	return ent
}
