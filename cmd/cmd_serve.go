package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bridge "github.com/rgnets/wlanpi-mqtt-bridge"
	"github.com/rgnets/wlanpi-mqtt-bridge/config"
	"github.com/rgnets/wlanpi-mqtt-bridge/corehttp"
	"github.com/rgnets/wlanpi-mqtt-bridge/logging"
	"github.com/rgnets/wlanpi-mqtt-bridge/messenger/mqtt"
	"github.com/rgnets/wlanpi-mqtt-bridge/server"
	"github.com/rgnets/wlanpi-mqtt-bridge/utils"
	"github.com/spf13/cobra"
)

// coreAddr is where the WLAN Pi core's REST API listens on-device.
const coreAddr = "http://localhost:31415"

const debugAddr = ":8080"

func serveRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(os.Getenv("WLANPI_BRIDGE_CONFIG"), config.Overrides{
		Server:     serverFlag,
		Port:       portFlag,
		Identifier: identifierFlag,
		Debug:      debugFlag,
	})
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}

	cfg, err = config.ResolveGateway(cfg, utils.DefaultGateway)
	if err != nil {
		return fmt.Errorf("cmd: resolve MQTT broker address: %w", err)
	}

	deviceID := cfg.Identifier
	if deviceID == "" {
		mac, err := utils.PrimaryInterfaceMAC()
		if err != nil {
			return fmt.Errorf("cmd: resolve device identifier: %w", err)
		}
		deviceID = mac
	}

	logCfg := logging.DefaultConfig()
	logCfg.DeviceID = deviceID
	logSvc, err := logging.NewService(logCfg)
	if err != nil {
		return fmt.Errorf("cmd: build logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tlsConfig, err := cfg.MQTTTLS.BuildTLSConfig()
	if err != nil {
		return fmt.Errorf("cmd: build MQTT TLS config: %w", err)
	}

	scheme := "tcp"
	if tlsConfig != nil {
		scheme = "ssl"
	}
	broker := fmt.Sprintf("%s://%s:%d", scheme, cfg.MQTT.Server, cfg.MQTT.Port)
	paho := mqtt.New(mqtt.Config{Broker: broker, TLSConfig: tlsConfig})

	core := corehttp.NewClient(coreAddr)
	dispatcher := bridge.New(bridge.Config{
		DeviceID:     deviceID,
		PollInterval: 30 * time.Second,
	}, paho, core, slog.Default())

	// Start registers the reconnect hook before Connect fires the first
	// CONNACK, so the initial connect sequence runs through the same path
	// every later reconnect does.
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("cmd: start dispatcher: %w", err)
	}

	if err := paho.Connect(ctx); err != nil {
		return fmt.Errorf("cmd: connect to broker %s: %w", broker, err)
	}

	if cfg.Debug {
		debugServer := server.NewServer(debugAddr)
		_ = debugServer.Register("/api/log", logSvc)
		_ = debugServer.Register("/api/stats", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			utils.GetStats().ServeHTTP(w, r)
		}))
		_ = debugServer.Register("/api/routes", server.JSONHandlerFunc(func() (any, error) {
			return dispatcher.Routes(), nil
		}))
		go func() {
			if err := debugServer.Start(ctx); err != nil {
				slog.Error("cmd: debug server stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dispatcher.Stop(stopCtx)
	return nil
}
