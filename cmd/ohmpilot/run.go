package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/ohmpilot-controller/internal/api"
	"github.com/tamzrod/ohmpilot-controller/internal/config"
	"github.com/tamzrod/ohmpilot-controller/internal/device"
	"github.com/tamzrod/ohmpilot-controller/internal/logger"
	"github.com/tamzrod/ohmpilot-controller/internal/metrics"
	"github.com/tamzrod/ohmpilot-controller/internal/mqtt"
	"github.com/tamzrod/ohmpilot-controller/internal/poller"
	"github.com/tamzrod/ohmpilot-controller/internal/status"
	"github.com/tamzrod/ohmpilot-controller/internal/surplus"
	"github.com/tamzrod/ohmpilot-controller/internal/timesync"
	"github.com/tamzrod/ohmpilot-controller/internal/writer"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.WithComponent("main")

	// --------------------
	// Device link + connectivity probe (fatal, no retry)
	// --------------------

	link, err := buildLink(cfg)
	if err != nil {
		return err
	}
	defer link.Close()

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Duration(cfg.Device.TimeoutMs)*time.Millisecond)
	code, err := device.Probe(probeCtx, link)
	cancel()
	if err != nil {
		return fmt.Errorf("device probe failed (%s): %w", link.Endpoint(), err)
	}
	log.Info().Str("endpoint", link.Endpoint()).Uint16("status", code).Msg("device reachable")

	commander, err := buildCommander(cfg)
	if err != nil {
		return err
	}

	// --------------------
	// MQTT connection (optional)
	// --------------------

	var conn *mqtt.Conn
	if cfg.MQTT.Enabled {
		conn, err = mqtt.NewConn(mqtt.ConnConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		}, logger.WithComponent("mqtt"))
		if err != nil {
			return err
		}
	}

	// --------------------
	// Surplus source + coordinator
	// --------------------

	var connector surplus.Connector
	if conn != nil {
		connector = conn
	}
	src, err := surplus.Build(cfg.Surplus, connector, cfg.MQTT.QoS, logger.WithComponent("surplus"))
	if err != nil {
		return err
	}

	coord, err := poller.Build(cfg, link, src, logger.WithComponent("poller"), poller.WithCommander(commander))
	if err != nil {
		return err
	}

	// --------------------
	// Listeners
	// --------------------

	tracker := status.NewTracker(time.Duration(cfg.Poll.StaleAfterMs)*time.Millisecond, nil)
	coord.Subscribe(tracker)

	coord.Subscribe(writer.Listener(writer.NewLogWriter(logger.WithComponent("cycle")), log))

	if cfg.CSV.Enabled {
		csvw, err := writer.NewCSVWriter(cfg.CSV.Dir)
		if err != nil {
			return err
		}
		defer csvw.Close()
		coord.Subscribe(writer.Listener(csvw, logger.WithComponent("csv")))
	}

	if cfg.Mirror.Enabled {
		mirror, err := writer.BuildMirror(cfg.Mirror)
		if err != nil {
			return err
		}
		defer mirror.Close()

		mlog := logger.WithComponent("mirror")
		coord.Subscribe(writer.Listener(mirror.Data, mlog))

		if mirror.Status != nil {
			// Full block write on start (identity re-assert).
			if err := mirror.Status.WriteStatus(tracker.Snapshot()); err != nil {
				mlog.Warn().Err(err).Msg("status write failed on start")
			}
			tracker.OnChange(func(s status.Snapshot) {
				if err := mirror.Status.WriteStatus(s); err != nil {
					mlog.Warn().Err(err).Msg("status write failed")
				}
			})
		}
	}

	var collector *metrics.Collector
	if cfg.HTTP.Metrics {
		collector = metrics.New()
		coord.Subscribe(collector)
		tracker.OnChange(collector.SetHealth)
	}

	if conn != nil {
		bridge := mqtt.NewBridge(mqtt.BridgeConfig{
			TopicPrefix:     cfg.MQTT.TopicPrefix,
			DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
			DeviceID:        cfg.MQTT.TopicPrefix,
			QoS:             cfg.MQTT.QoS,
			CommandTimeout:  time.Duration(cfg.Command.TimeoutMs) * time.Millisecond,
		}, coord, tracker, logger.WithComponent("mqtt"))

		blog := logger.WithComponent("mqtt")
		conn.OnConnect(func(c paho.Client) {
			if err := bridge.Attach(c); err != nil {
				blog.Error().Err(err).Msg("bridge attach failed")
			}
		})
		coord.Subscribe(bridge)

		if err := conn.Connect(); err != nil {
			return err
		}
		defer conn.Close()
	}

	// Everything that can fail is built before the first task starts.
	ts, err := buildTimeSync(cfg, link, timesync.OnSynced(coord.RecordClockSync))
	if err != nil {
		return err
	}

	// --------------------
	// Tasks
	// --------------------

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error { return tracker.Run(gctx) })

	if ts != nil {
		g.Go(func() error { return ts.Run(gctx) })
	}

	if cfg.HTTP.Listen != "" && (cfg.HTTP.API || cfg.HTTP.Metrics) {
		opts := []api.Option{api.WithAPI(cfg.HTTP.API)}
		if collector != nil {
			opts = append(opts, api.WithMetrics(collector.Handler()))
		}
		srv := api.NewServer(coord, tracker, logger.WithComponent("api"), opts...)
		g.Go(func() error { return srv.ListenAndServe(gctx, cfg.HTTP.Listen) })
	}

	log.Info().Msg("controller running")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("task failed")
	}

	// --------------------
	// Shutdown: heater off
	// --------------------

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := coord.Shutdown(sctx); serr != nil {
		log.Error().Err(serr).Msg("shutdown")
	}

	log.Info().Msg("controller stopped")
	return err
}
