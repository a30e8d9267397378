package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/leebs0521/wayline-core/internal/database"
	"github.com/leebs0521/wayline-core/internal/events"
	"github.com/leebs0521/wayline-core/internal/observability"
	"github.com/leebs0521/wayline-core/internal/registry"
	"github.com/leebs0521/wayline-core/internal/transport"
	"github.com/leebs0521/wayline-core/internal/wayline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lifecycle engine",
	Long: `Connects to the MQTT broker, restores live tasks from the
database, and serves the flight task lifecycle until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := observability.NewLogger(cfg.Logging)

		shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		defer shutdownTracing(ctx)

		db, err := database.OpenWithConfig(database.Config{
			Path:         cfg.Database.Path,
			MaxOpenConns: cfg.Database.MaxConnections,
			MaxIdleConns: cfg.Database.MaxConnections / 2,
			BusyTimeout:  cfg.Database.BusyTimeout,
		})
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.NewMigrator(db).Migrate(ctx); err != nil {
			return err
		}

		tr, err := transport.NewMQTTTransport(transport.MQTTConfig{
			BrokerURL:    cfg.MQTT.BrokerURL,
			ClientID:     cfg.MQTT.ClientID,
			Username:     cfg.MQTT.Username,
			Password:     cfg.MQTT.Password,
			ConnectRetry: true,
			Timeout:      cfg.MQTT.Keepalive,
		}, logger)
		if err != nil {
			return err
		}
		defer tr.Close()

		reg, err := registry.NewTransportRegistry(tr, logger)
		if err != nil {
			return err
		}
		defer reg.Close()

		busOpts := []events.Option{}
		if cfg.Metrics.Enabled {
			busOpts = append(busOpts,
				events.WithMetrics(events.NewPrometheusRecorder(prometheus.DefaultRegisterer)))
		}
		bus := events.NewEventBus(busOpts...)
		defer bus.Close()

		dispatcher := wayline.NewDispatcher(tr, cfg.Lifecycle.CommandTimeout, logger)

		controller := wayline.NewController(
			dispatcher,
			reg,
			database.NewTaskDAO(db),
			database.NewTransitionDAO(db),
			bus,
			wayline.WithRetention(cfg.Lifecycle.Retention),
			wayline.WithLogger(logger),
		)

		if err := controller.RestoreLive(ctx); err != nil {
			return err
		}

		feed := wayline.NewEventFeed(tr, controller)
		if err := feed.Start(ctx); err != nil {
			return err
		}
		defer feed.Stop()

		controller.StartRetentionSweeper(ctx, cfg.Lifecycle.SweepInterval)

		scheduler := wayline.NewScheduler(controller,
			wayline.WithScheduleInterval(cfg.Lifecycle.ScheduleInterval),
			wayline.WithScheduleGrace(cfg.Lifecycle.ScheduleGrace),
		)
		go scheduler.Run(ctx)

		if cfg.Metrics.Enabled {
			go serveMetrics(cfg.Metrics.Listen, logger)
		}

		logger.Info("wayline lifecycle engine running",
			"broker", cfg.MQTT.BrokerURL, "db", cfg.Database.Path)

		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	},
}

func serveMetrics(listen string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(listen, mux); err != nil {
		logger.Error("metrics listener failed", "error", err)
	}
}
