// Command bridge reads controller telemetry from the serial link (or a simulated
// controller), publishes it over MQTT and serves a status API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"github.com/itohio/gomppt/pkg/api"
	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/link"
	"github.com/itohio/gomppt/pkg/monitor"
	"github.com/itohio/gomppt/pkg/publish"
	"github.com/itohio/gomppt/pkg/telemetry"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		envFlag            = flag.String("env", ".env", "Environment file with MQTT and serial overrides")
		mockFlag           = flag.Bool("mock", false, "Use simulated controller instead of serial port")
		httpFlag           = flag.String("http", "", "Status API listen address override (e.g., :8080)")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of snapshots to average (0 = disabled, overrides config)")
		listPortsFlag      = flag.Bool("list", false, "List serial ports and exit")
	)
	flag.Parse()

	if *listPortsFlag {
		ports, err := link.Ports()
		if err != nil {
			log.Fatalf("Failed to list ports: %v", err)
		}
		for _, p := range ports {
			log.Println(p)
		}
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv(*envFlag)

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *httpFlag != "" {
		cfg.HTTP.Addr = *httpFlag
	}
	if *averageSamplesFlag >= 0 {
		cfg.Monitor.AverageSamples = *averageSamplesFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mockFlag); err != nil {
		log.Fatalf("Bridge stopped: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, useMock bool) error {
	var device link.Device
	if useMock {
		device = link.NewMock(cfg)
		log.Println("Using simulated controller")
	} else {
		device = link.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, link.DefaultBufferSize)
	}

	if err := device.Connect(); err != nil {
		return err
	}
	if !useMock {
		log.Printf("Connected to serial port: %s", cfg.Serial.Port)
	}
	defer device.Close()

	mon := monitor.New(cfg.Monitor.WindowSeconds)
	mon.OnUpdate(logEvents)

	if cfg.MQTT.Enabled {
		client, err := publish.Connect(cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		pub := publish.NewPublisher(client, cfg.MQTT)
		mon.OnUpdate(pub.Enqueue)
		go pub.Start(ctx)
	}

	var srv *http.Server
	if cfg.HTTP.Addr != "" {
		router := api.NewRouter(mon, device)
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handlers.LoggingHandler(os.Stdout, router),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("Status API listening on %s", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Status API failed: %v", err)
			}
		}()
	}

	stream := monitor.NewAveragingStage(cfg.Monitor.AverageSamples, 500)(device.Snapshots())
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		mon.ProcessSnapshots(stream)
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
	case <-monitorDone:
		log.Println("Link closed")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Status API shutdown: %v", err)
		}
	}

	device.Close()
	<-monitorDone

	return nil
}

func logEvents(latest telemetry.Snapshot, events []monitor.Event) {
	for _, e := range events {
		log.Printf("Protection %s active=%t at %dms (duty %d, %.2f A, %.2f V)",
			e.Rule, e.Active, e.Uptime, latest.Duty, latest.Current, latest.Voltage)
	}
}
