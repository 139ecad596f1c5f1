package cli

import (
	"context"
	"fmt"
	"html"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"customfields/internal/admin"
	"customfields/internal/auth"
	"customfields/internal/cache"
	"customfields/internal/config"
	"customfields/internal/engine"
	"customfields/internal/instrument"
	"customfields/internal/metadata"
	"customfields/internal/notifier"
	"customfields/internal/platform"
	"customfields/internal/storage"
	"customfields/internal/store"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load definitions and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer syncLogger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := NewServer(ctx, cfg)
			if err != nil {
				return err
			}
			defer srv.Close()

			go func() {
				<-ctx.Done()
				zap.S().Info("Shutting down")
				_ = srv.App.Shutdown()
			}()

			addr := fmt.Sprintf(":%d", cfg.Server.Port)
			zap.S().Infof("Starting server on %s", addr)
			return srv.App.Listen(addr)
		},
	}
}

// Server is a fully wired application.
type Server struct {
	App    *fiber.App
	Store  *store.Store
	Center *notifier.Center
	Types  map[string]*engine.Type

	buffer      *instrument.EventBuffer
	stopCleanup context.CancelFunc
}

// NewServer connects storage, loads definitions, builds every type and
// mounts the routes. Configuration problems become admin notices; only
// infrastructure failures are returned.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}
	zap.S().Infof("Database ready (%s)", cfg.Database.Driver)

	options, err := cache.NewOptionsCache(db, cfg.Cache.LRUSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	center := notifier.NewCenter(time.Duration(cfg.Notifier.TransientTTLSeconds) * time.Second)
	reg := metadata.NewRegistry()
	engine.ReportConfigErrors(center, metadata.NewLoader(options, reg).Initialize(ctx, cfg.Definitions.Path))

	entities := platform.NewEntities(db)
	plat := platform.New(cfg.Roles)
	hooks := engine.NewHooks()
	registerListingShortcodes(hooks, reg, entities)

	types, problems := engine.BuildTypes(reg, engine.Deps{
		Storage:  storage.NewMetaStorage(db),
		Hooks:    hooks,
		Platform: plat,
	})
	engine.ReportConfigErrors(center, problems)

	var buffer *instrument.EventBuffer
	if cfg.Instrumentation.Enabled {
		buffer = instrument.NewEventBuffer(db.DB, db.Dialect, cfg.Instrumentation.BufferSize, cfg.Instrumentation.FlushIntervalMs)
	}

	app := fiber.New(fiber.Config{ErrorHandler: admin.ErrorHandler})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(instrument.Middleware(cfg.Instrumentation, buffer))

	auth.RegisterRoutes(app, auth.NewHandler(db, cfg.Auth.JWTSecret))
	h := admin.NewHandler(plat, entities, types, center, instrument.NewEventReader(db.DB, db.Dialect))
	admin.RegisterRoutes(app, h, auth.Middleware(cfg.Auth.JWTSecret), auth.RequireAdmin())

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	if buffer != nil {
		go cleanupLoop(cleanupCtx, db, cfg.Instrumentation.RetentionDays)
	}

	return &Server{
		App:         app,
		Store:       db,
		Center:      center,
		Types:       types,
		buffer:      buffer,
		stopCleanup: stopCleanup,
	}, nil
}

// Close flushes pending events and releases the database.
func (s *Server) Close() {
	s.stopCleanup()
	if s.buffer != nil {
		s.buffer.Stop()
	}
	s.Store.Close()
}

func cleanupLoop(ctx context.Context, db *store.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if _, err := instrument.CleanupOldEvents(ctx, db.DB, db.Dialect, retentionDays); err != nil {
			zap.S().Warnf("Event cleanup failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// registerListingShortcodes gives every type with create_shortcode a
// default callback rendering its entity titles. The optional "limit"
// attribute caps the list.
func registerListingShortcodes(hooks *engine.Hooks, reg *metadata.Registry, entities *platform.Entities) {
	defs, err := reg.GetDefinitions()
	if err != nil {
		return
	}
	for _, def := range defs {
		if !def.CreateShortcode || def.SingularName == "" || def.PluralName == "" {
			continue
		}
		typeName := def.SingularName
		hooks.OnShortcode(typeName, def.PluralName, func(attrs map[string]string, content, name string) string {
			q := platform.ListQuery{Type: typeName, Order: attrs["order"]}
			q.Limit, _ = strconv.Atoi(attrs["limit"])
			ents, err := entities.List(context.Background(), q)
			if err != nil {
				zap.S().Warnf("shortcode %s: %v", name, err)
				return ""
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, `<ul class="customfields-%s">`, html.EscapeString(name))
			for _, e := range ents {
				fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(e.Title))
			}
			sb.WriteString("</ul>")
			sb.WriteString(content)
			return sb.String()
		})
	}
}
