package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"roomguard/internal/audit"
	"roomguard/internal/auth"
	"roomguard/internal/config"
	"roomguard/internal/database"
	"roomguard/internal/database/migrations"
	"roomguard/internal/mqtt"
	"roomguard/internal/notify"
	"roomguard/internal/observability/metrics"
	app "roomguard/internal/rooms/application"
	roomrepo "roomguard/internal/rooms/infrastructure/postgres"
	roomhttp "roomguard/internal/rooms/interfaces/http"
	roommqtt "roomguard/internal/rooms/interfaces/mqtt"
)

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := migrations.MigrateUp(db); err != nil {
			return err
		}
	} else if err := migrations.Check(db); err != nil {
		logger.Warn("schema check failed", zap.Error(err))
	}

	metrics.Init(db, logger)

	store, err := roomrepo.NewStore(db)
	if err != nil {
		return err
	}

	var broker *mqtt.Client
	if cfg.MQTT.Broker != "" {
		broker, err = mqtt.Connect(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, logger.Named("mqtt"))
		if err != nil {
			return err
		}
		defer broker.Close()
	}

	dispatcher, closeNotify, err := buildDispatcher(cfg, broker, logger)
	if err != nil {
		return err
	}
	defer closeNotify()

	opts := []app.Option{
		app.WithNotifier(dispatcher),
		app.WithOwnerDirectory(roomrepo.NewOwnerDirectory(db)),
		app.WithLogger(logger.Named("rooms")),
		app.WithThreshold(cfg.Safety.GasThresholdPPM),
		app.WithValveAutoCreate(cfg.Safety.ValveToggleAutoCreate),
	}
	safetyService, err := app.NewSafetyService(store, opts...)
	if err != nil {
		return err
	}
	ingestService, err := app.NewIngestService(store, opts...)
	if err != nil {
		return err
	}
	roomService, err := app.NewRoomService(store, opts...)
	if err != nil {
		return err
	}

	if broker != nil {
		telemetry, err := roommqtt.NewTelemetryHandler(ingestService, logger.Named("telemetry"), 10*time.Second)
		if err != nil {
			return err
		}
		if err := broker.Subscribe(cfg.MQTT.TelemetryTopic, 1, telemetry.HandleMessage); err != nil {
			return err
		}
		logger.Info("telemetry subscription active", zap.String("topic", cfg.MQTT.TelemetryTopic))
	}

	roomHandler, err := roomhttp.NewHandler(safetyService, ingestService, roomService, audit.NewRepository(db), logger.Named("http"))
	if err != nil {
		return err
	}
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.Ingest.HMACSecret), cfg.Ingest.MaxSkew)

	mux := http.NewServeMux()
	mux.Handle(roomhttp.Prefix, roomHandler)
	mux.Handle(roomhttp.Prefix+"/", ingestGate(roomHandler, ingestAuth))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthHandler(db))

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	handler := auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap(mux)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(handler, logger.Named("access")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildDispatcher assembles the configured sinks behind one dispatcher.
func buildDispatcher(cfg config.Config, broker *mqtt.Client, logger *zap.Logger) (*notify.Dispatcher, func(), error) {
	var sinks []notify.Sink
	if cfg.Notify.PushGatewayURL != "" {
		push, err := notify.NewPushSink(cfg.Notify.PushGatewayURL, cfg.Notify.PushServerKey, cfg.Notify.Timeout)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, push)
	}
	if cfg.Notify.WebhookURL != "" {
		tpl, err := notify.NewTemplate(cfg.Notify.Template)
		if err != nil {
			return nil, nil, fmt.Errorf("alert template: %w", err)
		}
		webhook, err := notify.NewWebhookSink(cfg.Notify.WebhookURL, tpl)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, webhook)
	}
	if broker != nil && cfg.MQTT.AlertTopic != "" {
		mqttSink, err := notify.NewMQTTSink(broker, cfg.MQTT.AlertTopic, 1)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, mqttSink)
	}
	multi := notify.NewMultiSink(sinks...)
	if multi.Len() == 0 {
		logger.Warn("no notification sinks configured; alerts are logged only")
	}

	opts := []notify.Option{
		notify.WithTimeout(cfg.Notify.Timeout),
		notify.WithCooldown(cfg.Notify.Cooldown),
		notify.WithDedupeWindow(cfg.Notify.DedupeWindow),
		notify.WithLogger(logger.Named("notify")),
	}
	closer := func() {}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sendLog, err := notify.NewRedisSendLog(client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		opts = append(opts, notify.WithSendLog(sendLog))
		closer = func() { _ = client.Close() }
	}

	dispatcher, err := notify.NewDispatcher(multi, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return dispatcher, closer, nil
}

// ingestGate applies signature checks to telemetry submissions only.
func ingestGate(next http.Handler, ingestAuth *auth.IngestAuthMiddleware) http.Handler {
	signed := ingestAuth.Wrap(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && isGasLevelPath(r.URL.Path) {
			signed.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
