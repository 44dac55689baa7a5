package gateway

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/naojsoft/qplan-core/cache"
	"github.com/naojsoft/qplan-core/log"
	"github.com/naojsoft/qplan-core/rpc"
)

var logger = log.Logger()

// GatewayServer is the HTTP/JSON façade in front of the PlannerService
// gRPC backend: operators and embedding tools that would rather not link
// the gRPC client directly can POST ingest tables to it and get a
// streamed plan run back over plain HTTP.
type GatewayServer struct {
	rpcEndpoint string
	httpPort    string
	server      *http.Server
	cache       *cache.RedisCache
	client      *rpc.Client
}

// NewGatewayServer creates a gateway with no response cache.
func NewGatewayServer(rpcEndpoint, httpPort string) *GatewayServer {
	return &GatewayServer{
		rpcEndpoint: rpcEndpoint,
		httpPort:    httpPort,
	}
}

// NewGatewayServerWithCache creates a gateway backed by redisCache for
// deduplicating identical plan requests.
func NewGatewayServerWithCache(rpcEndpoint, httpPort string, redisCache *cache.RedisCache) *GatewayServer {
	return &GatewayServer{
		rpcEndpoint: rpcEndpoint,
		httpPort:    httpPort,
		cache:       redisCache,
	}
}

// Start dials the PlannerService and serves the HTTP façade until ctx is
// cancelled or the server errors.
func (g *GatewayServer) Start(ctx context.Context) error {
	client, err := rpc.Dial(g.rpcEndpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to planner RPC service: %w", err)
	}
	defer client.Close()
	g.client = client

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/plan", g.handlePlan())

	if g.cache != nil {
		mux.HandleFunc("/api/v1/cache/health", g.handleCacheHealth())
		mux.HandleFunc("/api/v1/cache/stats", g.handleCacheStats())
	}

	handler := loggingMiddleware(mux)
	handler = addHealthCheck(handler)

	allowedOrigins := getCORSOrigins()
	logger.Info("CORS configuration", "allowed_origins", allowedOrigins)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"X-Request-Id",
			"X-Response-Time",
			"X-Cache",
		},
		AllowCredentials: false,
		MaxAge:           300,
	})

	handler = c.Handler(handler)

	g.server = &http.Server{
		Addr:              ":" + g.httpPort,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // plan runs stream; bounded by the request's own context instead
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("HTTP gateway starting", "port", g.httpPort, "rpc_endpoint", g.rpcEndpoint)

	if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP gateway server.
func (g *GatewayServer) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	logger.Info("shutting down HTTP gateway")
	return g.server.Shutdown(ctx)
}

// handlePlan accepts a JSON-encoded rpc.PlanRequest and streams back
// newline-delimited rpc.PlanEvent frames. A request whose body hashes to
// an entry already in the cache skips the scheduler run entirely and
// returns the cached summary as a single frame.
func (g *GatewayServer) handlePlan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req rpc.PlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorResponse(w, r, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}

		ctx := r.Context()
		cacheKey := ""
		if g.cache != nil {
			cacheKey = g.cache.Key(requestHash(&req))
			if cached, err := g.cache.Get(ctx, cacheKey); err != nil {
				logger.Error("plan cache get error", "error", err, "key", cacheKey)
			} else if cached != nil {
				w.Header().Set("Content-Type", "application/x-ndjson")
				w.Header().Set("X-Cache", "HIT")
				writeNDJSON(w, &rpc.PlanEvent{
					Type: "run_completed",
					RunCompleted: &rpc.RunCompletedMsg{
						Summary:          cached.Summary,
						PercentScheduled: cached.PercentScheduled,
						ResidualOBIDs:    cached.ResidualOBIDs,
					},
				})
				return
			}
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("X-Cache", "MISS")
		flusher, _ := w.(http.Flusher)

		err := g.client.RunPlanStream(ctx, &req, func(ev *rpc.PlanEvent) error {
			if err := writeNDJSON(w, ev); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
			if ev.Type == "run_completed" && g.cache != nil && ev.RunCompleted != nil {
				data := &cache.PlanCacheData{
					Summary:          ev.RunCompleted.Summary,
					PercentScheduled: ev.RunCompleted.PercentScheduled,
					ResidualOBIDs:    ev.RunCompleted.ResidualOBIDs,
				}
				if err := g.cache.Set(ctx, cacheKey, data); err != nil {
					logger.Error("plan cache set error", "error", err, "key", cacheKey)
				}
			}
			return nil
		})
		if err != nil {
			logger.Error("plan run failed", "error", err)
			_ = writeNDJSON(w, &rpc.PlanEvent{Type: "error", Error: err.Error()})
		}
	}
}

// requestHash derives a stable cache key from the request's ingest
// tables and weights, ignoring AllowDelay's pointer identity (only its
// value matters).
func requestHash(req *rpc.PlanRequest) string {
	allowDelay := "nil"
	if req.AllowDelay != nil {
		allowDelay = fmt.Sprintf("%v", *req.AllowDelay)
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		req.ProgramsCSV, req.ScheduleCSV, req.OBsCSV, req.WeightsYAML, allowDelay,
	}, "\x00")))
	return hex.EncodeToString(sum[:])
}

func writeNDJSON(w http.ResponseWriter, v interface{}) error {
	bw := bufio.NewWriter(w)
	if err := json.NewEncoder(bw).Encode(v); err != nil {
		return fmt.Errorf("encode ndjson frame: %w", err)
	}
	return bw.Flush()
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = generateRequestID()
	}

	errorResp := APIError{
		Error: ErrorDetails{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Path:      r.URL.Path,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}

// loggingMiddleware adds request logging
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set("X-Request-Id", requestID)

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		w.Header().Set("X-Response-Time", duration.String())

		logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", wrapper.statusCode,
			"duration", duration,
			"request_id", requestID,
			"user_agent", r.Header.Get("User-Agent"),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// addHealthCheck adds a health check endpoint
func addHealthCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/health" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{
				"status": "healthy",
				"timestamp": "%s",
				"service": "qplan-gateway",
				"version": "1.0.0"
			}`, time.Now().UTC().Format(time.RFC3339))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID generates a simple request ID
func generateRequestID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}

// getCORSOrigins returns the list of allowed CORS origins from environment configuration
func getCORSOrigins() []string {
	defaultOrigins := []string{
		"http://localhost:5173",
		"http://localhost:3000",
		"http://localhost:8086",
	}

	corsOriginsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if corsOriginsEnv == "" {
		return defaultOrigins
	}

	envOrigins := strings.Split(corsOriginsEnv, ",")
	origins := make([]string, 0, len(envOrigins))
	for _, origin := range envOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}

	if len(origins) == 0 {
		logger.Warn("No valid CORS origins found in CORS_ALLOWED_ORIGINS, using defaults")
		return defaultOrigins
	}
	return origins
}

// handleCacheHealth handles cache health check requests
func (g *GatewayServer) handleCacheHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if g.cache == nil {
			writeErrorResponse(w, r, http.StatusServiceUnavailable, "CACHE_DISABLED", "Cache is not enabled", nil)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := g.cache.HealthCheck(ctx); err != nil {
			writeErrorResponse(w, r, http.StatusServiceUnavailable, "CACHE_UNHEALTHY", "Cache health check failed", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{
			"status": "healthy",
			"timestamp": "%s",
			"service": "redis-cache"
		}`, time.Now().UTC().Format(time.RFC3339))
	}
}

// handleCacheStats handles cache statistics requests
func (g *GatewayServer) handleCacheStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if g.cache == nil {
			writeErrorResponse(w, r, http.StatusServiceUnavailable, "CACHE_DISABLED", "Cache is not enabled", nil)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		stats, err := g.cache.Stats(ctx)
		if err != nil {
			writeErrorResponse(w, r, http.StatusInternalServerError, "STATS_ERROR", "Failed to get cache statistics", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			logger.Error("Failed to encode cache stats", "error", err)
			writeErrorResponse(w, r, http.StatusInternalServerError, "ENCODING_ERROR", "Failed to encode stats", nil)
		}
	}
}
