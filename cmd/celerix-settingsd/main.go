package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/celerix-settings/internal/api"
	"github.com/celerix-dev/celerix-settings/internal/config"
	"github.com/celerix-dev/celerix-settings/internal/vault"
)

func main() {
	fmt.Println("Starting Celerix Settings Daemon...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	e, err := cfg.OpenEngine()
	if err != nil {
		log.Fatalf("Failed to open %s engine in %s: %v", cfg.Backend, cfg.DataDir, err)
	}
	namespaces, err := e.Namespaces()
	if err != nil {
		log.Printf("Warning: Could not list namespaces: %v", err)
	}
	fmt.Printf("Engine started (%s). Loaded %d namespaces.\n", cfg.Backend, len(namespaces))

	h := &api.Handler{Storage: cfg.NewStorage(e)}
	r := gin.Default()

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})
	api.Register(r.Group("/api"), h)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API route not found"})
	})

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r}

	if !cfg.DisableTLS {
		fmt.Println("Generating self-signed certificate...")
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			log.Fatalf("Failed to generate TLS certificate: %v", err)
		}
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
		fmt.Println("TLS encryption enabled.")
	} else {
		fmt.Println("TLS encryption disabled (CELERIX_DISABLE_TLS=true).")
	}

	go func() {
		fmt.Printf("Admin API listening on :%s\n", cfg.HTTPPort)
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutdown signal received. Finalizing disk writes...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Warning: HTTP shutdown: %v", err)
	}
	if err := e.Close(); err != nil {
		log.Printf("Warning: closing engine: %v", err)
	}
	fmt.Println("Persistence complete. Exiting.")
}
