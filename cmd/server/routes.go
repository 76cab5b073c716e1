package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	groqapi "github.com/groqtales/groqtales-server/internal/api/groq"
	"github.com/groqtales/groqtales-server/internal/api/nft"
	"github.com/groqtales/groqtales-server/internal/api/story"
	"github.com/groqtales/groqtales-server/internal/auth"
	"github.com/groqtales/groqtales-server/internal/config"
	"github.com/groqtales/groqtales-server/internal/pipeline"
	"github.com/groqtales/groqtales-server/internal/server"
)

// mountRoutes registers the API under /api. Completion routes get the
// stream timeout. Mint routes get the request timeout plus the receipt
// wait and sit behind API key auth when key hashes are configured.
func mountRoutes(r chi.Router, cfg *config.Config, svc *pipeline.Services, logger *slog.Logger) {
	groqHandler := groqapi.NewHandler(svc.Processor, svc.Groq, logger)
	storyHandler := story.NewHandler(svc.Orchestrator, svc.Store, logger)
	nftHandler := nft.NewHandler(svc.Orchestrator)

	authenticator := auth.NewAuthenticator(cfg.Auth.APIKeyHashes)
	if authenticator == nil {
		logger.Warn("no api key hashes configured, mint endpoints are open")
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(server.TimeoutMiddleware(cfg.Server.StreamTimeout))
			r.Post("/groq", groqHandler.HandleAction)
			r.Get("/groq", groqHandler.HandleInfo)
		})

		r.Group(func(r chi.Router) {
			r.Use(server.TimeoutMiddleware(cfg.Server.RequestTimeout))
			r.Get("/stories/{id}", storyHandler.HandleGetStory)
		})

		r.Group(func(r chi.Router) {
			r.Use(server.TimeoutMiddleware(cfg.Server.RequestTimeout + cfg.Chain.ConfirmTimeout))
			r.Use(server.AuthMiddleware(authenticator))
			r.Post("/story/mint", storyHandler.HandleMint)
			r.Post("/nft/mint", nftHandler.HandleMint)
		})
	})
}
