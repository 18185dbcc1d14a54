package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"codebattle-server/config"
	"codebattle-server/domain"
	"codebattle-server/events"
	"codebattle-server/hub"
	"codebattle-server/judge"
	"codebattle-server/matchmaking"
	"codebattle-server/protocol"
	"codebattle-server/provider"
	ws "codebattle-server/websocket"
)

const catalogLoadTimeout = 60 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	var source domain.ProblemProvider = provider.NewLeetCode(cfg.Provider.BaseURL, cfg.Provider.FetchTimeout)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		source = provider.NewCache(rdb, source, cfg.Redis.TTL)
	}

	slog.Info("loading problems", "slugs", len(cfg.Provider.Slugs))
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), catalogLoadTimeout)
	catalog := provider.LoadCatalog(loadCtx, source, cfg.Provider.Slugs)
	cancelLoad()
	slog.Info("problems ready", "loaded", catalog.Len(), "fallback", catalog.UsingFallback())

	sinks := setupEvents(cfg)

	coordinator := hub.New(catalog,
		hub.WithGracePeriod(cfg.Room.GracePeriod),
		hub.WithEvents(sinks),
	)
	handler := protocol.NewHandler(coordinator, judge.NewJudge0(cfg.Judge.URL, cfg.Judge.LanguageID),
		protocol.WithJudgeTimeout(cfg.Judge.Timeout),
		protocol.WithWorkers(cfg.Judge.Workers),
		protocol.WithEvents(sinks),
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(cfg.Server.AllowedOrigins, coordinator, handler, catalog),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	announceShutdown(coordinator)
	handler.Close()
	coordinator.Close()
	if err := sinks.Close(); err != nil {
		slog.Error("event sinks close", "error", err)
	}
	if rdb != nil {
		rdb.Close()
	}
}

func setupLogger(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
}

// setupEvents enables every configured sink. A sink that cannot start is
// logged and left out.
func setupEvents(cfg *config.Config) events.Multi {
	sinks := events.Multi{events.Log{}}
	if len(cfg.Kafka.Brokers) > 0 {
		k, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			slog.Warn("kafka events disabled", "error", err)
		} else {
			sinks = append(sinks, k)
			slog.Info("kafka events enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		}
	}
	if cfg.NATS.URL != "" {
		n, err := events.NewNATSSink(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			slog.Warn("nats events disabled", "error", err)
		} else {
			sinks = append(sinks, n)
			slog.Info("nats events enabled", "url", cfg.NATS.URL)
		}
	}
	return sinks
}

func newRouter(origins []string, coordinator *hub.Hub, handler *protocol.Handler, catalog *provider.Catalog) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(origins),
	}
	queue := matchmaking.NewQueue(handler)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/queue/{client_id}", wsHandler(upgrader, queue))
	mux.HandleFunc("GET /ws/queue", wsHandler(upgrader, queue))
	mux.HandleFunc("GET /ws/{room_id}/{client_id}", wsHandler(upgrader, handler))
	mux.HandleFunc("GET /ws/{room_id}", wsHandler(upgrader, handler))
	mux.HandleFunc("GET /{$}", healthHandler(coordinator, catalog))
	mux.HandleFunc("GET /stats", statsHandler(coordinator, queue))
	mux.HandleFunc("GET /rooms/{room_id}", roomHandler(coordinator))

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(mux)
}

func checkOrigin(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

// wsHandler upgrades and hands the connection to handler. Queue routes have
// no room_id, so their connections start without a room.
func wsHandler(upgrader websocket.Upgrader, handler domain.MessageHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := r.PathValue("room_id")
		clientID := r.PathValue("client_id")
		if clientID == "" {
			clientID = uuid.NewString()
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "room", room, "error", err)
			return
		}

		slog.Info("client connecting", "room", room, "clientId", clientID)
		ws.NewConn(clientID, room, conn, handler).Start()
	}
}

func healthHandler(coordinator *hub.Hub, catalog *provider.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, _ := coordinator.Stats()
		writeJSON(w, map[string]any{
			"status":           "ok",
			"questions_loaded": catalog.Len(),
			"fallback":         catalog.UsingFallback(),
			"active_rooms":     rooms,
		})
	}
}

func statsHandler(coordinator *hub.Hub, queue *matchmaking.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, clients := coordinator.Stats()
		queued := 0
		if _, ok := queue.Waiting(); ok {
			queued = 1
		}
		writeJSON(w, map[string]int{"rooms": rooms, "clients": clients, "queued": queued})
	}
}

func roomHandler(coordinator *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("room_id")
		state := coordinator.State(id)
		if state == domain.StateEmpty {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		info := map[string]any{
			"room":    id,
			"state":   state,
			"players": coordinator.PlayerCount(id),
		}
		if p := coordinator.Problem(id); p != nil {
			info["problem"] = p.Slug
		}
		if client := r.URL.Query().Get("client"); client != "" {
			info["reconnecting"] = coordinator.ClientInGrace(id, client)
		}
		writeJSON(w, info)
	}
}

// announceShutdown tells every connected client the server is going away
// before in-flight submissions are settled and connections closed.
func announceShutdown(coordinator *hub.Hub) {
	for _, id := range coordinator.RoomIDs() {
		coordinator.Broadcast(id, domain.Status{Msg: "Server is shutting down"})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}
