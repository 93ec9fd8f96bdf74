package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/lunDreame/st-bridge/internal/adapters/input/ssdp"
	"github.com/lunDreame/st-bridge/internal/adapters/input/tcp"
	"github.com/lunDreame/st-bridge/internal/adapters/output/homeassistant"
	"github.com/lunDreame/st-bridge/internal/adapters/output/persistence"
	"github.com/lunDreame/st-bridge/internal/domain/service"
	"github.com/lunDreame/st-bridge/internal/logger"
	"github.com/lunDreame/st-bridge/internal/ports"
)

const optionsPollInterval = 5 * time.Second

func main() {
	configErr := loadConfig()
	log := logger.Get(viper.GetString("log.level"))
	if configErr != nil {
		log.Fatalw("error reading config", "err", configErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Platform client
	haClient := homeassistant.NewClient(log)
	if url, token := viper.GetString("homeassistant.url"), viper.GetString("homeassistant.token"); url != "" && token != "" {
		haClient.Configure(url, token)
	} else {
		log.Warnw("home assistant credentials not configured")
	}

	// Exposure selection
	optionsRepo := persistence.NewJSONOptionsRepository(viper.GetString("options.path"))

	// Core
	registry := service.NewRegistry(log)
	coordinator := service.NewCoordinator(service.CoordinatorConfig{
		CallTimeout: viper.GetDuration("platform.call_timeout"),
	}, registry, haClient, log)
	go func() { _ = coordinator.Run(ctx) }()
	go watchOptions(ctx, optionsRepo, coordinator, log)

	// Discovery
	port := viper.GetInt("bridge.port")
	responder := ssdp.NewResponder(bridgeID(), viper.GetString("bridge.name"), port, log)
	go func() {
		if err := responder.Serve(ctx.Done()); err != nil {
			log.Warnw("ssdp responder stopped", "err", err)
		}
	}()

	// Bridge server
	server := tcp.NewServer(tcp.Config{
		Addr:             fmt.Sprintf(":%d", port),
		Token:            viper.GetString("bridge.token"),
		HandshakeTimeout: viper.GetDuration("bridge.handshake_timeout"),
		IdleTimeout:      viper.GetDuration("bridge.idle_timeout"),
	}, coordinator, log)

	if err := server.ListenAndServe(ctx); err != nil {
		log.Fatalw("bridge server failed", "err", err)
	}
	log.Infow("bridge stopped")
}

func loadConfig() error {
	viper.SetDefault("log.level", logger.InfoLevel)
	viper.SetDefault("bridge.port", tcp.DefaultPort)
	viper.SetDefault("bridge.name", "ST Bridge")
	viper.SetDefault("bridge.handshake_timeout", 30*time.Second)
	viper.SetDefault("bridge.idle_timeout", 90*time.Second)
	viper.SetDefault("platform.call_timeout", 10*time.Second)
	viper.SetDefault("options.path", "configs/options.json")

	viper.SetEnvPrefix("ST_BRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil // defaults plus env are enough
		}
		return err
	}
	return nil
}

func bridgeID() string {
	if id := viper.GetString("bridge.id"); id != "" {
		return id
	}
	return uuid.NewString()
}

// watchOptions polls the options file and applies selection changes, which
// is how an external configuration UI reaches the running bridge.
func watchOptions(ctx context.Context, repo ports.OptionsRepository, coordinator *service.Coordinator, log *logger.Logger) {
	var last any
	ticker := time.NewTicker(optionsPollInterval)
	defer ticker.Stop()

	for {
		opts, err := repo.Get(ctx)
		if err != nil {
			log.Warnw("could not read options", "err", err)
		} else if !reflect.DeepEqual(opts, last) {
			coordinator.UpdateOptions(opts)
			last = opts
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
