package admin

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the public and the authenticated admin routes.
// authMW must set c.Locals("user"); adminMW must reject non-administrators.
func RegisterRoutes(app *fiber.App, h *Handler, authMW, adminMW fiber.Handler) {
	app.Get("/health", h.Health)
	app.Get("/shortcode/:name", h.Shortcode)
	app.Post("/shortcode", h.ExpandShortcodes)
	app.Get("/archive/:type", h.Archive)

	admin := app.Group("/admin", authMW)
	admin.Get("/types", h.ListTypes)
	admin.Get("/types/:type", h.ListEntities)
	admin.Post("/types/:type", h.CreateEntity)
	admin.Get("/types/:type/:id/edit", h.EditForm)
	admin.Post("/types/:type/:id", h.SaveEntity)

	admin.Get("/notices", h.ListNotices)
	admin.Delete("/notices/:id", adminMW, h.DismissNotice)

	admin.Get("/events", adminMW, h.ListEvents)
	admin.Get("/events/trace/:traceId", adminMW, h.GetTrace)
}
