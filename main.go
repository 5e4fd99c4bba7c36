// Command backgammon-server runs the wagered backgammon match server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Configuration comes from BACKGAMMON_* environment variables (optionally via
// a .env file) and command-line flags, which take precedence.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/backgammon-server/api"
	"github.com/wricardo/backgammon-server/auth"
	"github.com/wricardo/backgammon-server/game/config"
	"github.com/wricardo/backgammon-server/game/matchmaking"
	"github.com/wricardo/backgammon-server/game/service"
	"github.com/wricardo/backgammon-server/game/session"
	"github.com/wricardo/backgammon-server/game/settlement"
	"github.com/wricardo/backgammon-server/game/supervisor"
	"github.com/wricardo/backgammon-server/storage/sqlite"
	"github.com/wricardo/backgammon-server/telemetry"
	"github.com/wricardo/backgammon-server/transport/mcp"
	"github.com/wricardo/backgammon-server/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Backgammon Server"
)

var version = flag.Bool("version", false, "Show version information")

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                    # Run HTTP server on default port 3001\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9090         # Run HTTP server on port 9090\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp          # Run MCP stdio server\n", os.Args[0])
	}
}

// main parses configuration and starts the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	cfg, err := config.ParseServer(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	if cfg.Debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	mode := "server"
	if args := flag.Args(); len(args) > 0 {
		mode = args[0]
	}

	log.Printf("Starting %s v%s (mode: %s)", AppName, Version, mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "backgammon-server", cfg.OTELEndpoint)
	if err != nil {
		log.Printf("Warning: tracing disabled: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		err = runStdioMCPWithInternalServer(ctx, cfg)
	case "server", "http":
		err = runHTTPServer(ctx, cfg)
	default:
		log.Fatalf("Unknown mode: %s. Use 'server' (default) or 'stdio-mcp'", mode)
	}
	if err != nil {
		log.Fatalf("%s stopped: %v", AppName, err)
	}
}

// app holds the wired services of one server process.
type app struct {
	cfg      config.Server
	store    *sqlite.Store
	sessions *session.Manager
	hub      *websocket.Hub
	service  service.GameService
}

// newApp opens storage, restores snapshotted sessions and wires the game service.
func newApp(cfg config.Server) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	boards, err := config.NewManager(cfg.BoardDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create board manager: %w", err)
	}

	verifier, err := auth.NewTokenVerifier(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	persistence, err := session.NewFilePersistence(cfg.SnapshotDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sessions := session.NewManagerWithPersistence(persistence)
	if err := sessions.LoadPersistedSessions(); err != nil {
		log.Printf("Warning: Failed to load persisted sessions: %v", err)
	}

	hub := websocket.NewHub()
	gameService := service.NewGameService(service.Deps{
		Sessions:  sessions,
		Queue:     matchmaking.NewQueue(),
		Users:     store,
		Archive:   store,
		Matches:   store,
		Settler:   settlement.NewService(store),
		Boards:    boards,
		Identity:  verifier,
		Publisher: hub,
	}, service.Options{
		Tip:             cfg.Tip,
		DisconnectGrace: cfg.DisconnectGrace,
		ConcludedMaxAge: cfg.ConcludedMaxAge,
	})

	return &app{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		hub:      hub,
		service:  gameService,
	}, nil
}

// handler combines the REST API, WebSocket endpoint and the /mcp proxy.
func (a *app) handler(baseURL string) http.Handler {
	apiServer := api.NewServer(a.service, a.hub)
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// run starts the hub and sweepers alongside serve and blocks until ctx is
// cancelled or one of them fails.
func (a *app) run(ctx context.Context, serve func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.hub.Run(gctx) })
	g.Go(func() error {
		return supervisor.New(a.service, a.cfg.TimeoutInterval, a.cfg.ArchiveInterval).Run(gctx)
	})
	g.Go(func() error { return serve(gctx) })

	return g.Wait()
}

// close snapshots unfinished sessions and closes storage.
func (a *app) close() {
	if err := a.sessions.SaveAllSessions(); err != nil {
		log.Printf("Warning: Failed to snapshot sessions: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}
}

// serveUntilDone serves srv on l and shuts it down when ctx ends.
func serveUntilDone(ctx context.Context, srv *http.Server, l net.Listener, deadline time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	return nil
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, cfg config.Server) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	addr := cfg.Addr()
	mainRouter := a.handler(fmt.Sprintf("http://%s", addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	err = a.run(ctx, func(ctx context.Context) error {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if cfg.NgrokEnabled {
			go runNgrokTunnel(ctx, cfg, mainRouter)
		}

		return serveUntilDone(ctx, httpServer, listener, cfg.ShutdownDeadline)
	})

	log.Println("Server stopped")
	return err
}

// runNgrokTunnel exposes handler through an ngrok endpoint until ctx ends.
func runNgrokTunnel(ctx context.Context, cfg config.Server, handler http.Handler) {
	authToken := cfg.NgrokAuth
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTH_TOKEN") // Also support underscore version
	}
	if authToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		log.Printf("Using custom ngrok domain: %s", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	ngrokURL := tun.URL()
	log.Printf("🚀 Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	srv := &http.Server{Handler: handler}
	if err := serveUntilDone(ctx, srv, tun, cfg.ShutdownDeadline); err != nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// externalServerUp reports whether a server already answers /health at baseURL.
func externalServerUp(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It reuses a server already listening on the configured address; otherwise it
// starts the full server on a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, cfg config.Server) error {
	externalURL := fmt.Sprintf("http://%s", cfg.Addr())
	log.Printf("Checking for external API server at %s...", externalURL)

	if externalServerUp(externalURL) {
		log.Printf("External API server found at %s, using it for MCP", externalURL)
		mcpClient := mcp.NewClient(externalURL)
		log.Println("MCP stdio server ready (using external HTTP server)")
		return server.ServeStdio(mcpClient.GetMCPServer())
	}

	log.Printf("No external API server found, starting internal HTTP server")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to get available port: %w", err)
	}
	internalAddr := listener.Addr().String()
	baseURL := fmt.Sprintf("http://%s", internalAddr)
	log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

	httpServer := &http.Server{Handler: a.handler(baseURL)}
	mcpClient := mcp.NewClient(baseURL)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	return a.run(runCtx, func(ctx context.Context) error {
		go func() {
			log.Println("MCP stdio server ready (using internal HTTP server)")
			if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
				log.Printf("MCP stdio server error: %v", err)
			}
			// Stdin closed: stop the internal server too.
			cancel()
		}()
		return serveUntilDone(ctx, httpServer, listener, cfg.ShutdownDeadline)
	})
}
