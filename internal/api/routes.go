package api

import (
	"net/http"

	"github.com/strata-vc/dealdesk/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) {
	syncHandler := domain.Sync.Handler()

	routes.Register(
		mux,
		domain.Records.Handler().Routes(),
		domain.Scoring.Handler().Routes(),
		syncHandler.Routes(),
		syncHandler.PipelineRoutes(),
		domain.Rubric.Handler().Routes(),
		domain.Feedback.Handler().Routes(),
		newStorageHandler(runtime.Storage, runtime.Logger).routes(),
	)
}
