package main

import (
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/clanarena/draftauction/internal/config"
	"github.com/clanarena/draftauction/internal/gateway"
)

func setupServer(cfg config.Server, svc *gateway.Service) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws/auction", svc.HandleWebSocket)
	mux.HandleFunc("/ws/stats", svc.HandleStats)
	mux.HandleFunc("/api/auctions", svc.HandleCreateAuction)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:        cfg.Addr,
		Handler:     c.Handler(mux),
		ReadTimeout: 10 * time.Second,
		// Write timeout stays unset: websocket connections are long-lived.
		IdleTimeout: 120 * time.Second,
	}
}
