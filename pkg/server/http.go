// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2agrpc"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/kadirpekel/storefront/pkg/auth"
	"github.com/kadirpekel/storefront/pkg/config"
	"github.com/kadirpekel/storefront/pkg/observability"
	"github.com/kadirpekel/storefront/pkg/shop"
)

// DefaultProductPage is the number of random products /api/products returns.
const DefaultProductPage = 20

// Catalog is what the product API reads.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*shop.Product, error)
	RandomProducts(ctx context.Context, n int) ([]*shop.Product, error)
	Ping(ctx context.Context) error
}

// Server serves A2A JSON-RPC, the agent card, the product API and the
// operational endpoints on one HTTP listener, plus A2A over gRPC when a
// gRPC port is configured.
type Server struct {
	cfg  *config.Config
	card *a2a.AgentCard

	requestHandler a2asrv.RequestHandler
	catalog        Catalog
	taskStore      a2asrv.TaskStore
	validator      auth.TokenValidator
	metrics        *observability.Metrics
	tracer         trace.Tracer
	mcp            http.Handler

	httpServer *http.Server
	grpcServer *grpc.Server
}

// Option configures a Server.
type Option func(*Server)

// WithTaskStore persists A2A tasks. Without it tasks live in memory.
func WithTaskStore(store a2asrv.TaskStore) Option {
	return func(s *Server) { s.taskStore = store }
}

// WithCatalog enables /api/products.
func WithCatalog(c Catalog) Option {
	return func(s *Server) { s.catalog = c }
}

// WithAuthValidator requires bearer tokens on non-public routes.
func WithAuthValidator(v auth.TokenValidator) Option {
	return func(s *Server) { s.validator = v }
}

// WithObservability traces and measures requests and serves /metrics.
func WithObservability(tracer trace.Tracer, metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.tracer = tracer
		s.metrics = metrics
	}
}

// WithMCPHandler mounts an MCP endpoint at cfg.MCP.Path.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// New builds the server around an executor.
func New(cfg *config.Config, exec a2asrv.AgentExecutor, opts ...Option) *Server {
	s := &Server{cfg: cfg, card: NewAgentCard(cfg)}
	for _, opt := range opts {
		opt(s)
	}

	var handlerOpts []a2asrv.RequestHandlerOption
	if s.taskStore != nil {
		handlerOpts = append(handlerOpts, a2asrv.WithTaskStore(s.taskStore))
	}
	s.requestHandler = a2asrv.NewHandler(exec, handlerOpts...)
	return s
}

// Card returns the advertised agent card.
func (s *Server) Card() *a2a.AgentCard { return s.card }

// publicPaths never require a token.
func (s *Server) publicPaths() []string {
	return []string{
		a2asrv.WellKnownAgentCardPath,
		"/healthz",
		"/metrics",
		"/api/",
	}
}

// Handler returns the HTTP routes with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMiddleware(s.tracer, s.metrics))
	r.Use(cors)
	if s.validator != nil {
		r.Use(auth.Middleware(s.validator, s.publicPaths()...))
	}

	r.Post("/", a2asrv.NewJSONRPCHandler(s.requestHandler).ServeHTTP)
	r.Get(a2asrv.WellKnownAgentCardPath, a2asrv.NewStaticAgentCardHandler(s.card).ServeHTTP)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	}
	if s.catalog != nil {
		r.Get("/api/products", s.handleProducts)
		r.Get("/api/products/{id}", s.handleProduct)
	}
	if s.mcp != nil && s.cfg.MCP.Enabled {
		r.Handle(s.cfg.MCP.Path, s.mcp)
		r.Handle(s.cfg.MCP.Path+"/*", s.mcp)
	}
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server starting", "address", s.httpServer.Addr, "card", s.card.URL)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if s.cfg.Server.GRPCPort != 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.GRPCPort))
		if err != nil {
			_ = s.httpServer.Close()
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		s.grpcServer = s.newGRPCServer()
		g.Go(func() error {
			slog.Info("gRPC server starting", "address", lis.Addr().String())
			if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("gRPC server failed: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) newGRPCServer() *grpc.Server {
	var opts []grpc.ServerOption
	if s.validator != nil {
		opts = append(opts,
			grpc.UnaryInterceptor(auth.UnaryServerInterceptor(s.validator)),
			grpc.StreamInterceptor(auth.StreamServerInterceptor(s.validator)),
		)
	}
	srv := grpc.NewServer(opts...)
	a2agrpc.NewHandler(s.requestHandler).RegisterWith(srv)
	reflection.Register(srv)
	return srv
}

// Shutdown stops both listeners. gRPC is stopped forcibly when ctx
// expires before in-flight streams finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		slog.Info("HTTP server shutting down")
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
		}
	}
	if s.grpcServer != nil {
		slog.Info("gRPC server shutting down")
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			slog.Warn("gRPC graceful stop timed out, forcing shutdown")
			s.grpcServer.Stop()
		}
	}
	return errors.Join(errs...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.catalog != nil {
		if err := s.catalog.Ping(r.Context()); err != nil {
			slog.Error("Health check failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": "Database is not healthy",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": s.cfg.Server.AgentName + " is healthy"})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	limit := DefaultProductPage
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if ceiling := s.cfg.Search.APITopKMax; ceiling > 0 && limit > ceiling {
		limit = ceiling
	}

	products, err := s.catalog.RandomProducts(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to fetch products", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch products: "+err.Error())
		return
	}
	out := make([]productJSON, len(products))
	for i, p := range products {
		out[i] = toProductJSON(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.catalog.GetProduct(r.Context(), id)
	switch {
	case errors.Is(err, shop.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Product with ID '%s' not found", id))
	case err != nil:
		slog.Error("Failed to fetch product", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch product: "+err.Error())
	default:
		writeJSON(w, http.StatusOK, toProductJSON(p))
	}
}

// productJSON is the product shape of the REST API. Prices are dollars.
type productJSON struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Picture         string  `json:"picture"`
	ProductImageURL string  `json:"product_image_url"`
	Price           float64 `json:"price"`
}

func toProductJSON(p *shop.Product) productJSON {
	return productJSON{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Picture:         p.Picture,
		ProductImageURL: p.ImageURL(),
		Price:           p.Price(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// requestLogger logs each request at debug level. The response writer is
// wrapped with chi's flusher-preserving wrapper so SSE streams still work.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
