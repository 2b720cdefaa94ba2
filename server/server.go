// Package server exposes the payment core over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/JasonDocton/rad-crowdfunding/controllers"
	"github.com/JasonDocton/rad-crowdfunding/signal"
)

const gracefulShutdownTimeout = 30 * time.Second

// Start launches the HTTP server on listenAddr and returns a function that
// gracefully shuts it down.
func Start(listenAddr string, ctx *controllers.Context) func() {
	router := mux.NewRouter()
	addRoutes(router, ctx)

	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	spawn(func() {
		log.Infof("Listening on %s", listenAddr)
		err := httpServer.ListenAndServe()
		if err != http.ErrServerClosed {
			// The server is the only way donations come in, so a dead
			// listener means the process has no reason to stay up.
			log.Errorf("HTTP server stopped: %s", err)
			signal.RequestShutdown()
		}
	})

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			gracefulShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		if err != nil {
			log.Errorf("Error shutting down the HTTP server: %s", err)
		}
	}
}
