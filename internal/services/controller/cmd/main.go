package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/config"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/health"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/history"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/metrics"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/sensors"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/services/controller"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/store"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/telemetry"
	"github.com/LeonardoBeccarini/hydroponic_project/pkg/broker"
	"github.com/LeonardoBeccarini/hydroponic_project/pkg/dedup"
)

func main() {
	cfgPath := flag.String("config", config.Path(), "YAML configuration file")
	writeDefault := flag.String("write-default", "", "write the named preset (produksi|penyemaian) to -config and exit")
	flag.Parse()

	if *writeDefault != "" {
		c, err := config.Preset(*writeDefault)
		if err != nil {
			log.Fatalf("preset: %v", err)
		}
		if err := c.Save(*cfgPath); err != nil {
			log.Fatalf("save config: %v", err)
		}
		log.Printf("config: %s preset written to %s", *writeDefault, *cfgPath)
		return
	}

	// === Config ===
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("controller: instance %s, base topic %s, %d pumps, driver %s",
		cfg.Instance.Name, cfg.Instance.BaseTopic, len(cfg.Pumps), cfg.Hardware.Driver)

	// Sinks outlive the workers so the final OFF states reach them.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sinkCtx, sinkCancel := context.WithCancel(context.Background())
	defer sinkCancel()
	var wg, sinkWg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	spawnSink := func(fn func(ctx context.Context)) {
		sinkWg.Add(1)
		go func() {
			defer sinkWg.Done()
			fn(sinkCtx)
		}()
	}

	// === Hardware ===
	hw, err := openRig(cfg)
	if err != nil {
		log.Fatalf("hardware: %v", err)
	}
	defer func() {
		if err := hw.Close(); err != nil {
			log.Printf("hardware: WARN: close: %v", err)
		}
	}()

	// === Local store ===
	db, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer db.Close()
	journal := store.NewJournal(db, 512)

	// === Metrics ===
	mx := metrics.New(cfg.Instance.Name)

	// === MQTT ===
	topics := telemetry.NewTopics(cfg.Instance.BaseTopic, cfg.Pumps)

	// The first session starts before the controller exists, so onConnect
	// only announces once everything is wired. The broker outlives the
	// sinks: the final OFF states still go out.
	brokerCtx, brokerCancel := context.WithCancel(context.Background())
	defer brokerCancel()
	var announce atomic.Pointer[func(*broker.Conn)]
	conn, err := broker.NewConn(brokerCtx, cfg.BrokerConfig(topics.LWT, telemetry.Offline), func(c *broker.Conn) {
		if fn := announce.Load(); fn != nil {
			(*fn)(c)
		}
	})
	if err != nil {
		log.Fatalf("broker: %v", err)
	}
	defer conn.Close()
	pub := telemetry.NewStatePublisher(broker.NewPublisher(conn).WithQoS(1), topics, 256)

	// === History (optional) ===
	var (
		recorder *history.Recorder
		writer   *history.Writer
		mux      = http.NewServeMux()
	)
	if cfg.History.Enabled {
		influx := influxdb2.NewClient(cfg.History.URL, cfg.History.Token)
		defer influx.Close()
		writer = history.NewWriter(influx.WriteAPIBlocking(cfg.History.Org, cfg.History.Bucket),
			cfg.History.BreakerFails, cfg.History.BreakerOpen)
		recorder = history.NewRecorder(cfg.Instance.Name, writer, 1024)
		mux.Handle("/history/pumps/latest", history.NewPumpLatestHandler(influx.QueryAPI(cfg.History.Org), cfg.History.Bucket, cfg.Instance.Name))
	}

	// === Controller ===
	sinks := controller.Notifiers{pub, journal, mx}
	if recorder != nil {
		sinks = append(sinks, recorder)
	}
	ctrl, err := controller.New(cfg.Pumps, cfg.ControllerSettings(), hw.outputs, sinks,
		controller.WithCommandHook(mx.ObserveCommand))
	if err != nil {
		log.Fatalf("controller: %v", err)
	}

	router := telemetry.NewRouter(topics, ctrl, dedup.New(10*time.Minute, 5000))
	router.OnReject = mx.ObserveRejected
	consumer := broker.NewMultiConsumer(conn.Client(), topics.Subscriptions(), router.Handle)

	onSession := func(*broker.Conn) {
		if err := pub.Online(); err != nil {
			log.Printf("controller: WARN: online: %v", err)
		}
		consumer.Subscribe()
		ctrl.PublishStates()
	}
	announce.Store(&onSession)
	if conn.IsConnected() {
		onSession(conn)
	}

	// === Workers ===
	spawnSink(pub.Run)
	spawnSink(journal.Run)
	if recorder != nil {
		spawnSink(recorder.Run)
	}
	spawn(func() { ctrl.Run(ctx, cfg.Intervals.Tick) })

	agg := sensors.NewAggregator(hw.source,
		sensors.WithTDS(cfg.TDS()),
		sensors.WithReservoirHeight(cfg.Calibration.ReservoirHeightCm),
		sensors.WithPHSamples(cfg.Calibration.PHSamples, 10*time.Millisecond),
	)
	spawn(func() {
		every(ctx, cfg.Intervals.SensorPublish, func() {
			snap := agg.Read(ctx)
			ctrl.ProcessSnapshot(snap)
			_ = pub.PublishSnapshot(snap)
			mx.ObserveSnapshot(snap)
			journal.RecordSnapshot(snap)
			if recorder != nil {
				recorder.RecordSnapshot(snap)
			}
		})
	})
	spawn(func() {
		every(ctx, cfg.Intervals.Heartbeat, func() { _ = pub.Heartbeat() })
	})
	if cfg.Store.Retention > 0 {
		spawn(func() {
			every(ctx, time.Hour, func() {
				n, err := db.PruneSnapshots(ctx, time.Now().Add(-cfg.Store.Retention))
				if err != nil {
					log.Printf("store: WARN: prune: %v", err)
				} else if n > 0 {
					log.Printf("store: pruned %d snapshots", n)
				}
			})
		})
	}

	// === gRPC health ===
	hs := health.NewServer()
	hs.Bind(conn)
	go func() {
		if err := hs.ListenAndServe(":" + strconv.Itoa(cfg.GRPC.Port)); err != nil {
			log.Printf("health: WARN: %v", err)
		}
	}()

	// === HTTP ===
	mux.Handle("/healthz", history.NewHealthHandler(conn, writer))
	mux.Handle("/readyz", history.NewReadyHandler(conn, writer, 2*time.Second))
	mux.Handle("/metrics", mx.Handler())
	mux.Handle("/status", controller.NewStatusHandler(ctrl))
	mux.Handle("/local/pumps/runs", store.NewRunsHandler(db))

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("controller: HTTP listening on :%d", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// === Wait for signal ===
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("controller: shutting down...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	hs.Stop()

	// Run switches every pump off on its way out; the sinks flush after
	cancel()
	wg.Wait()
	sinkCancel()
	sinkWg.Wait()
	brokerCancel()
}

// every runs fn now and then at each interval until ctx ends.
func every(ctx context.Context, d time.Duration, fn func()) {
	t := time.NewTicker(d)
	defer t.Stop()
	fn()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
