// HubLink - SmartThings device bridge
//
// HubLink mirrors a hub's devices into a local cache, reconciles it with the
// hub's device list on an interval, applies attribute changes the hub pushes
// to its listener, and republishes every device on MQTT and a WebSocket
// stream. Commands arriving on MQTT are routed to the hub over the LAN when
// it is reachable and through the cloud API otherwise.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-hublink/migrations"

	"github.com/nerrad567/gray-logic-hublink/internal/accessory"
	"github.com/nerrad567/gray-logic-hublink/internal/api"
	"github.com/nerrad567/gray-logic-hublink/internal/cli"
	"github.com/nerrad567/gray-logic-hublink/internal/device"
	"github.com/nerrad567/gray-logic-hublink/internal/hub"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hublink/internal/ingest"
	"github.com/nerrad567/gray-logic-hublink/internal/poller"
	"github.com/nerrad567/gray-logic-hublink/internal/transport"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// startupTimeout bounds the plugin status report and the first announce.
	startupTimeout = 30 * time.Second

	// pruneInterval is how often old attribute history is deleted.
	pruneInterval = time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	root := cli.NewRootCommand(cli.BuildInfo{Version: version, Commit: commit, Date: date}, run)
	err := root.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}

// run is the serve command. It returns nil on a clean shutdown and
// cli.ErrRestartRequested when the hub asked for a restart.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting HubLink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	checks := make(map[string]api.HealthChecker)

	// Attribute history (optional)
	var history *device.SQLiteHistoryRepository
	if cfg.Database.Enabled {
		db, dbErr := openDatabase(ctx, cfg.Database)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database ready", "path", cfg.Database.Path)
		checks["database"] = db
		history = device.NewSQLiteHistoryRepository(db.DB)
	} else {
		log.Info("attribute history disabled")
	}

	// Telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection", "failed_batches", influxClient.Failures())
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Presentation bus (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled, devices are published on the WebSocket stream only")
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Core components
	cache := device.NewCache()
	cache.SetLogger(log)

	hubClient, err := hub.NewClient(hub.Config{
		AppURL:      cfg.Hub.AppURL,
		AppID:       cfg.Hub.AppID,
		AccessToken: cfg.Hub.AccessToken,
		Timeout:     cfg.GetHubTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating hub client: %w", err)
	}
	hubClient.SetLogger(log)

	settings := transport.NewSettings(cfg.Local.Commands, cfg.Local.HubIP)
	settings.SetLogger(log)
	tracker := transport.NewTracker()
	tracker.SetLogger(log)

	wsHub := api.NewHub(cfg.WebSocket, log)

	var bus accessory.Bus
	var qos byte
	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
	if mqttClient != nil {
		bus = mqttClient
		topics = mqttClient.Topics()
		qos = mqttClient.QoS()
	}
	presenter := accessory.New(bus, cache, accessory.Options{
		Topics:             topics,
		QoS:                qos,
		ExcludedAttributes: cfg.Devices.ExcludedAttributes,
		TemperatureUnit:    cfg.Devices.TemperatureUnit,
	})
	presenter.SetLogger(log)
	presenter.SetBroadcaster(wsHub)

	ingestor := ingest.New(cache, presenter)
	ingestor.SetLogger(log, cfg.Logging.ShowChanges)

	refresher := poller.New(poller.Config{
		Interval:             cfg.GetPollInterval(),
		ExcludedCapabilities: cfg.Devices.ExcludedCapabilities,
	}, hubClient, cache, settings, presenter)
	refresher.SetLogger(log)

	if history != nil {
		ingestor.SetHistory(history)
		refresher.SetHistory(history)
	}
	if influxClient != nil {
		ingestor.SetMetrics(influxClient)
		refresher.SetMetrics(influxClient)
	}

	// Push listener
	restartCh := make(chan struct{}, 1)
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Hub:         cfg.Hub,
		Logger:      log,
		Cache:       cache,
		Ingestor:    ingestor,
		Settings:    settings,
		Tracker:     tracker,
		Poller:      refresher,
		Checks:      checks,
		ExternalHub: wsHub,
		Restart: func() {
			select {
			case restartCh <- struct{}{}:
			default:
			}
		},
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating push listener: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting push listener: %w", err)
	}
	var closeListener sync.Once
	stopListener := func() {
		closeListener.Do(func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing push listener", "error", closeErr)
			}
		})
	}
	defer stopListener()

	// Command routing. The announced port is the bound one.
	advertise := cfg.API.AdvertiseIP
	if advertise == "" {
		advertise = detectAdvertiseIP()
	}
	local := transport.NewLocalClient(cfg.Local.Port, cfg.GetLocalTimeout(), hubClient.Source())
	dispatcher := transport.NewDispatcher(settings, tracker, local, hubClient, transport.AnnounceInfo{
		IP:      advertise,
		Port:    server.Port(),
		Version: version,
	})
	dispatcher.SetLogger(log)
	if influxClient != nil {
		dispatcher.SetMetrics(influxClient)
	}
	defer dispatcher.Wait()
	tracker.OnChange(func(state transport.HealthState) {
		presenter.PublishTransportState(state, dispatcher.Route())
	})
	presenter.PublishTransportState(tracker.State(), dispatcher.Route())

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	presenter.SetSender(dispatcher)
	if bus != nil {
		if err := presenter.Start(runCtx); err != nil {
			return fmt.Errorf("starting accessory commands: %w", err)
		}
		defer presenter.Wait()
	}

	startCtx, cancelStart := context.WithTimeout(runCtx, startupTimeout)
	if err := hubClient.SendPluginStatus(startCtx, hub.PluginStatus{Version: version}); err != nil {
		log.Warn("failed to send plugin status", "error", err)
	}
	if err := dispatcher.Announce(startCtx); err != nil {
		log.Warn("start-direct announcement failed", "error", err)
	}
	cancelStart()

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		refresher.Run(runCtx)
	}()

	if history != nil && cfg.Database.HistoryRetentionHours > 0 {
		retention := time.Duration(cfg.Database.HistoryRetentionHours) * time.Hour
		go pruneHistory(runCtx, history, retention, log)
	}

	log.Info("initialisation complete",
		"listener", server.Addr().String(),
		"advertise_ip", advertise,
		"route", dispatcher.Route(),
	)

	var result error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case <-restartCh:
		log.Warn("restarting at the hub's request")
		result = cli.ErrRestartRequested
	}

	// No pushes can trigger a refresh once the listener is closed.
	stopListener()
	cancelRun()
	<-pollerDone

	log.Info("HubLink stopped")
	return result
}

// openDatabase opens the history database and applies migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// healthCheck verifies every enabled infrastructure connection.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, check := range checks {
		if err := check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// historyPruner is implemented by device.SQLiteHistoryRepository.
type historyPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneHistory deletes history older than retention now and then once per
// pruneInterval until ctx is cancelled.
func pruneHistory(ctx context.Context, repo historyPruner, retention time.Duration, log *logging.Logger) {
	prune := func() {
		deleted, err := repo.PruneHistory(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("failed to prune attribute history", "error", err)
			}
			return
		}
		if deleted > 0 {
			log.Info("pruned attribute history", "deleted", deleted, "retention", retention.String())
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// detectAdvertiseIP returns the first non-loopback IPv4 address, or
// "127.0.0.1" when none is configured.
func detectAdvertiseIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
