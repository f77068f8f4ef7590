// Package server provides an in-process HTTP server speaking the backup
// repository authentication API. The harness uses it to exercise its own
// repository client without a cluster, and "bmt serve" exposes it for local
// experiments.
//
// # Architecture Overview
//
//	┌───────────────────────────────────────────────────────────────┐
//	│                         HTTP Server                           │
//	├───────────────────────────────────────────────────────────────┤
//	│                       Middleware Stack                        │
//	│  ┌─────────────────────────────────────────────────────────┐  │
//	│  │  Logger (ginzap request logging)                        │  │
//	│  │  Recovery (panic recovery with zap logging)             │  │
//	│  └─────────────────────────────────────────────────────────┘  │
//	├───────────────────────────────────────────────────────────────┤
//	│                     Router (/api/stable)                      │
//	│  ┌─────────────────────────────────────────────────────────┐  │
//	│  │  Handlers (registered via callback)                     │  │
//	│  └─────────────────────────────────────────────────────────┘  │
//	└───────────────────────────────────────────────────────────────┘
//
// Gin always runs in release mode. There is no TLS: the real repository is
// reached through kubectl port-forward over plain HTTP as well.
//
// # Server Lifecycle
//
// Creation binds the listener immediately, so Addr is valid before Start:
//
//	srv, err := server.NewServer("127.0.0.1:0", func(router *gin.RouterGroup) {
//	    handlers.New(accounts).Register(router)
//	})
//
// Starting blocks until ctx is cancelled, then shuts down gracefully
// (2 second timeout):
//
//	go srv.Start(ctx)
//	url := srv.URL() // http://127.0.0.1:<port>
package server
