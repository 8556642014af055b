package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ykarpov/ListKeeper/internal/auth"
	"github.com/ykarpov/ListKeeper/internal/middleware"
)

// NewRouter constructs and returns the HTTP handler serving the
// checklist API. Owner routes sit behind bearer authentication; share
// routes accept an anonymous token bearer, with an optional credential
// only feeding the is_owner marker of the shared view.
//
// Routes:
//
//	GET    /api/checklists                                   → list
//	POST   /api/checklists                                   → create
//	GET    /api/checklists/{checklistID}                     → full tree
//	DELETE /api/checklists/{checklistID}                     → cascade delete
//	POST   /api/checklists/{checklistID}/clone               → deep copy
//	POST   /api/checklists/{checklistID}/share               → mint token
//	POST   /api/checklists/{checklistID}/categories          → add category
//	PUT    .../categories/{categoryID}                       → rename
//	DELETE .../categories/{categoryID}                       → cascade delete
//	POST   .../categories/{categoryID}/files                 → upload
//	POST   .../categories/{categoryID}/items                 → add item
//	PUT    .../items/{itemID}                                → rename
//	PATCH  .../items/{itemID}/toggle                         → completion flag
//	DELETE .../items/{itemID}                                → cascade delete
//	POST   .../items/{itemID}/files                          → upload
//	DELETE /api/files/{fileID}                               → detach file
//	GET    /api/share/{token}                                → shared tree
//	POST   /api/share/{token}/categories/{categoryID}/files  → upload
//	POST   .../categories/{categoryID}/items/{itemID}/files  → upload
//	DELETE /api/share/{token}/files/{fileID}                 → detach file
//	GET    /media/*                                          → blob bytes
//	GET    /metrics                                          → prometheus
func NewRouter(
	checklistHandler *ChecklistHandler,
	shareHandler *ShareHandler,
	fileHandler *FileHandler,
	jwtManager *auth.JWTManager,
	mediaDir string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Log each request and record metrics
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.WithMetrics())

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(mediaDir))))

	// Mount API routes
	r.Route("/api", func(r chi.Router) {
		// JSON bodies everywhere except multipart uploads
		r.Use(chiMiddleware.AllowContentType("application/json", "multipart/form-data"))

		// Share-token routes: no authentication required
		r.Route("/share/{token}", func(r chi.Router) {
			r.Use(middleware.OptionalAuth(jwtManager))
			r.Get("/", shareHandler.Resolve)
			r.Post("/categories/{categoryID}/files", shareHandler.UploadCategoryFile)
			r.Post("/categories/{categoryID}/items/{itemID}/files", shareHandler.UploadItemFile)
			r.Delete("/files/{fileID}", shareHandler.DeleteFile)
		})

		// Protected group: requires a valid identity-provider credential
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwtManager))

			r.Route("/checklists", func(r chi.Router) {
				r.Get("/", checklistHandler.List)
				r.Post("/", checklistHandler.Create)

				r.Route("/{checklistID}", func(r chi.Router) {
					r.Get("/", checklistHandler.Get)
					r.Delete("/", checklistHandler.Delete)
					r.Post("/clone", checklistHandler.Clone)
					r.Post("/share", shareHandler.Create)
					r.Post("/categories", checklistHandler.CreateCategory)

					r.Route("/categories/{categoryID}", func(r chi.Router) {
						r.Put("/", checklistHandler.RenameCategory)
						r.Delete("/", checklistHandler.DeleteCategory)
						r.Post("/files", fileHandler.UploadCategoryFile)
						r.Post("/items", checklistHandler.CreateItem)

						r.Route("/items/{itemID}", func(r chi.Router) {
							r.Put("/", checklistHandler.RenameItem)
							r.Patch("/toggle", checklistHandler.ToggleItem)
							r.Delete("/", checklistHandler.DeleteItem)
							r.Post("/files", fileHandler.UploadItemFile)
						})
					})
				})
			})

			r.Delete("/files/{fileID}", fileHandler.DeleteFile)
		})
	})

	return r
}
