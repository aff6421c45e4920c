package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/photokit/facetree/internal/faceindex"
	"github.com/photokit/facetree/internal/hierarchy"
	"github.com/photokit/facetree/internal/web/handlers"
)

func (s *Server) setupRoutes(index *faceindex.Index, builder *hierarchy.Builder) {
	peopleHandler := handlers.NewPeopleHandler(index)
	treeHandler := handlers.NewTreeHandler(s.config, builder)
	rebuildHandler := handlers.NewRebuildHandler(s.config, builder, s.jobManager)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// People directory (face index leaves)
		r.Get("/people", peopleHandler.List)
		r.Get("/people/{faceId}", peopleHandler.Get)
		r.Put("/people/{faceId}/name", peopleHandler.Rename)
		r.Delete("/people/{faceId}/name", peopleHandler.ClearName)
		r.Get("/people/{faceId}/assets", peopleHandler.Assets)
		r.Post("/people/groupings", peopleHandler.Groupings)

		// People tree
		r.Get("/tree", treeHandler.Root)
		r.Get("/tree/stale", treeHandler.Stale)
		r.Get("/tree/{nodeId}", treeHandler.Node)
		r.Get("/tree/{nodeId}/children", treeHandler.Children)
		r.Get("/tree/{nodeId}/leaves", treeHandler.Leaves)
		r.Get("/tree/{nodeId}/display-name", treeHandler.DisplayName)

		// Rebuild (long-running operation)
		r.Post("/tree/rebuild", rebuildHandler.Start)
		r.Get("/tree/rebuild/{jobId}", rebuildHandler.Status)
		r.Get("/tree/rebuild/{jobId}/events", rebuildHandler.Events)
		r.Delete("/tree/rebuild/{jobId}", rebuildHandler.Cancel)
	})
}
