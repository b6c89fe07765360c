// Package dashboard serves a small read-only HTTP status view of the live
// sessions.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avlott/birdfeed/internal/gateway"
)

// StatusProvider supplies session snapshots; satisfied by
// *gateway.Registry.
type StatusProvider interface {
	Sessions() []gateway.SessionStatus
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Sessions StatusProvider
	Port     int
	Out      io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Sessions == nil {
		return fmt.Errorf("dashboard: sessions provider is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts.Sessions)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func registerRoutes(router *gin.Engine, sessions StatusProvider) {
	router.GET("/healthz", handleHealthz())
	router.GET("/api/sessions", handleSessions(sessions))
}

func handleHealthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleSessions(sessions StatusProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		list := sessions.Sessions()
		if list == nil {
			list = []gateway.SessionStatus{}
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list})
	}
}
