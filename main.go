package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/exp/slog"

	"manualpilot/canvas/impl"
	"manualpilot/canvas/internal"
	"manualpilot/canvas/internal/discovery"
)

type Env struct {
	Port             int      `env:"PORT,default=3001"`
	InstanceID       string   `env:"INSTANCE_ID"`
	OriginPatterns   []string `env:"ORIGIN_PATTERNS"`
	RedisURL         string   `env:"REDIS_URL"`
	ServiceDomain    string   `env:"SERVICE_DOMAIN"`
	PorkbunAPIKey    string   `env:"PORKBUN_API_KEY"`
	PorkbunAPISecret string   `env:"PORKBUN_API_SECRET"`
	MDNS             bool     `env:"MDNS,default=false"`
}

func doMain(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := Env{}
	if err := envconfig.Process(ctx, &env); err != nil {
		return err
	}

	if env.InstanceID == "" {
		env.InstanceID = ksuid.New().String()
	}

	logger = logger.With(slog.String("instance", env.InstanceID))

	var rdb *redis.Client
	if env.RedisURL != "" {
		rOpts, err := redis.ParseURL(env.RedisURL)
		if err != nil {
			return err
		}

		rdb = redis.NewClient(rOpts)
		if err := rdb.Info(ctx).Err(); err != nil {
			return err
		}

		//goland:noinspection GoUnhandledErrorResult
		defer rdb.Close()
	}

	router, err := internal.Main(logger, ctx, env.InstanceID, rdb, env.OriginPatterns)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", env.Port),
		Handler: router,
	}

	if env.ServiceDomain != "" {
		if rdb == nil {
			return fmt.Errorf("SERVICE_DOMAIN needs REDIS_URL for certificate storage")
		}

		tlsConfig, err := impl.TLSConfig(env.ServiceDomain, env.PorkbunAPIKey, env.PorkbunAPISecret, rdb)
		if err != nil {
			return err
		}

		server.TLSConfig = tlsConfig
	}

	//goland:noinspection GoUnhandledErrorResult
	defer server.Close()

	if env.MDNS {
		advertiser, err := discovery.Advertise(env.InstanceID, env.Port)
		if err != nil {
			return err
		}

		//goland:noinspection GoUnhandledErrorResult
		defer advertiser.Shutdown()
		logger.Debug("advertising", slog.String("service", discovery.Service))
	}

	ec := make(chan error)
	go func() {
		logger.Debug("starting...", slog.String("address", server.Addr))

		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			ec <- err
		}
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sc:
		logger.Warn("shutdown signal", slog.String("signal", sig.String()))
	case err := <-ec:
		logger.Error("failed to start http server", err)
	}

	return nil
}

func main() {
	handler := slog.HandlerOptions{AddSource: true, Level: slog.LevelDebug}
	logger := slog.New(handler.NewTextHandler(os.Stdout))

	if err := doMain(logger); err != nil {
		logger.Error("failed to start", err)
		os.Exit(1)
	}
}
