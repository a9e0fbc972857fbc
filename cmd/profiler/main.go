package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	root "github.com/absmach/profiler"
	"github.com/absmach/profiler/pkg/format"
	"github.com/absmach/profiler/pkg/hal"
	"github.com/absmach/profiler/pkg/kernel"
	"github.com/absmach/profiler/pkg/mqtt"
	"github.com/absmach/profiler/pkg/prometheus"
	"github.com/absmach/profiler/pkg/sensors"
	"github.com/absmach/profiler/pkg/transport"
	"github.com/absmach/profiler/profiler"
	"github.com/absmach/profiler/profiler/api"
	"github.com/absmach/profiler/profiler/middleware"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "profiler"
	defHTTPPort   = "9021"
	envPrefix     = "PROFILER_"
	envPrefixHTTP = "PROFILER_HTTP_"
	pathEnv       = ".env"

	watchdogExitCode = 3
)

type envConfig struct {
	LogLevel        string        `env:"PROFILER_LOG_LEVEL"        envDefault:"info"`
	InstanceID      string        `env:"PROFILER_INSTANCE_ID"`
	ProfilePath     string        `env:"PROFILER_PROFILE"`
	SerialOutput    bool          `env:"PROFILER_SERIAL"           envDefault:"true"`
	FileOutput      string        `env:"PROFILER_FILE"`
	FileMaxSizeMB   int           `env:"PROFILER_FILE_MAX_SIZE_MB" envDefault:"10"`
	FileMaxBackups  int           `env:"PROFILER_FILE_MAX_BACKUPS" envDefault:"3"`
	ConsoleButton   bool          `env:"PROFILER_CONSOLE_BUTTON"   envDefault:"true"`
	SensorMatch     string        `env:"PROFILER_SENSOR_MATCH"`
	WatchdogTimeout time.Duration `env:"PROFILER_WATCHDOG_TIMEOUT" envDefault:"2s"`
	SleepTick       time.Duration `env:"PROFILER_SLEEP_TICK"       envDefault:"1ms"`
	MaxPayload      int           `env:"PROFILER_MAX_PAYLOAD"      envDefault:"1024"`
	MQTTAddress     string        `env:"PROFILER_MQTT_ADDRESS"`
	MQTTQoS         uint8         `env:"PROFILER_MQTT_QOS"         envDefault:"1"`
	MQTTTimeout     time.Duration `env:"PROFILER_MQTT_TIMEOUT"     envDefault:"30s"`
	ClientID        string        `env:"PROFILER_CLIENT_ID"`
	ClientKey       string        `env:"PROFILER_CLIENT_KEY"`
	DomainID        string        `env:"PROFILER_DOMAIN_ID"`
	ChannelID       string        `env:"PROFILER_CHANNEL_ID"`
	OTELURL         url.URL       `env:"PROFILER_OTEL_URL"`
	TraceRatio      float64       `env:"PROFILER_TRACE_RATIO"      envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	pcfg := profiler.Config{}
	if err := env.ParseWithOptions(&pcfg, env.Options{Prefix: envPrefix}); err != nil {
		log.Fatalf("failed to load pipeline configuration : %s", err.Error())
	}

	if cfg.ProfilePath != "" {
		profile, err := root.LoadConfig(cfg.ProfilePath, &pcfg)
		if err != nil {
			log.Fatalf("failed to load profile: %s", err.Error())
		}
		applyProfile(&cfg, profile.Client)
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	// Standard output carries the serial stream, so logs go to stderr.
	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	var (
		outputs transport.Multi
		pubsub  mqtt.PubSub
	)
	if cfg.SerialOutput {
		outputs = append(outputs, transport.NewSerial(os.Stdout))
	}
	if cfg.FileOutput != "" {
		file := transport.NewFile(cfg.FileOutput, cfg.FileMaxSizeMB, cfg.FileMaxBackups)
		defer file.Close()
		outputs = append(outputs, file)
	}
	baseTopic := fmt.Sprintf("m/%s/c/%s", cfg.DomainID, cfg.ChannelID)
	if cfg.MQTTAddress != "" {
		ps, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, cfg.ClientID, cfg.ClientID, cfg.ClientKey, cfg.DomainID, cfg.ChannelID, cfg.MQTTTimeout, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := ps.Disconnect(context.Background()); err != nil {
				logger.Warn("failed to disconnect mqtt client", slog.Any("error", err))
			}
		}()
		pubsub = ps

		mt, err := transport.NewMQTT(ps, baseTopic+"/profiler/snapshots")
		if err != nil {
			logger.Error("failed to initialize mqtt transport", slog.String("error", err.Error()))

			return
		}
		outputs = append(outputs, mt)
	}
	if len(outputs) == 0 {
		logger.Error("no output configured: enable serial, file or mqtt")

		return
	}
	if cfg.MaxPayload < format.MinSize {
		logger.Error("max payload too small", slog.Int("max_payload", cfg.MaxPayload), slog.Int("min", format.MinSize))

		return
	}

	k := kernel.New(kernel.NewClock(), pcfg.Thresholds.HeapTotal)
	pin := hal.NewSimPin()
	led := &hal.LED{}
	wd := hal.NewSoftWatchdog(cfg.WatchdogTimeout, func() {
		logger.Error("watchdog expired, resetting")
		os.Exit(watchdogExitCode)
	})

	thermo := sensors.Fallback{
		Primary:   sensors.NewHost(cfg.SensorMatch),
		Secondary: sensors.Fixed(sensors.DefaultTemperature),
	}

	p, err := profiler.NewPipeline(ctx, pcfg, profiler.Deps{
		Kernel:      k,
		HAL:         hal.NewSoftHAL(cfg.SleepTick),
		Pin:         pin,
		Watchdog:    wd,
		Thermometer: thermo,
		Heartbeat:   led,
		Formatter:   format.New(cfg.MaxPayload, pcfg.Thresholds),
		Transport:   outputs,
		Instruments: prometheus.MakeInstruments(svcName),
	}, logger)
	if err != nil {
		logger.Error("failed to create pipeline", slog.String("error", err.Error()))

		return
	}
	pin.OnFallingEdge(p.Edge)

	svc := profiler.NewService(p)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if pubsub != nil {
		if err := profiler.Subscribe(ctx, baseTopic, pubsub, svc, logger); err != nil {
			logger.Error("failed to subscribe to control topic", slog.String("error", err.Error()))

			return
		}
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	wd.Start()

	g.Go(func() error {
		err := p.Run(ctx)
		if errors.Is(err, profiler.ErrHalted) {
			// The watchdog is no longer fed and will reset the process.
			logger.Error("pipeline halted", slog.String("error", err.Error()))
			<-ctx.Done()

			return nil
		}

		return err
	})

	if cfg.ConsoleButton {
		go func() {
			if err := hal.DriveFromReader(ctx, os.Stdin, pin, logger); err != nil {
				logger.Warn("console button stopped", slog.Any("error", err))
			}
		}()
	}

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
	wd.Stop()
}

func applyProfile(cfg *envConfig, c root.ClientConfig) {
	if c.ClientID != "" {
		cfg.ClientID = c.ClientID
	}
	if c.ClientKey != "" {
		cfg.ClientKey = c.ClientKey
	}
	if c.DomainID != "" {
		cfg.DomainID = c.DomainID
	}
	if c.ChannelID != "" {
		cfg.ChannelID = c.ChannelID
	}
}
