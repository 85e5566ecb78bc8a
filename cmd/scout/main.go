package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/ospreylabs/go-scout/internal/config"
	"github.com/ospreylabs/go-scout/internal/log"
	"github.com/ospreylabs/go-scout/pkg/bridge"
	"github.com/ospreylabs/go-scout/pkg/drive"
	"github.com/ospreylabs/go-scout/pkg/locate"
	"github.com/ospreylabs/go-scout/pkg/scout"
	"github.com/ospreylabs/go-scout/pkg/trajectory"
	"github.com/ospreylabs/go-scout/pkg/web"
)

func main() {
	configPath := flag.String("config", "scout.yaml", "Path to the controller configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scout: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	client, err := bridge.Dial(ctx, cfg.Bridge.URL)
	if err != nil {
		log.Error("bridge connection failed", "err", err)
		os.Exit(1)
	}
	defer client.Close()

	estimator := locate.New(client, locate.Mode(cfg.Task.Localization), locate.Frames{
		Global: cfg.Robot.GlobalFrame,
		Robot:  cfg.Robot.RobotFrame,
		Odom:   cfg.Robot.OdomFrame,
	})

	seq := trajectory.NewLazy(func() []trajectory.Waypoint {
		wps := make([]trajectory.Waypoint, 0, len(cfg.Waypoints))
		for _, wp := range cfg.Waypoints {
			wps = append(wps, trajectory.Waypoint{Name: wp.Name, Pose: wp.Pose()})
		}
		return wps
	})

	// Velocity fans out to the bridge (instrumented) and, once the API
	// server exists, to the telemetry websocket.
	var telemetry drive.VelocitySink
	sink := scout.TeeSink{
		scout.InstrumentSink(client),
		drive.SinkFunc(func(linear, angular float64) {
			if telemetry != nil {
				telemetry.Publish(linear, angular)
			}
		}),
	}

	driver := drive.New(estimator, client, sink, drive.Config{
		SpeedFactor: cfg.Robot.SpeedFactor,
		RateHz:      cfg.Control.RateHz,
		DistTol:     cfg.Control.DistTol,
		YawTol:      cfg.Control.YawTolDeg * math.Pi / 180,
	})
	sc := scout.New(estimator, driver, seq)

	server := web.NewServer(cfg.API.Port, sc, cfg.Robot.NamedFrames)
	telemetry = server.VelocitySink()

	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
		server.Shutdown()
	}()

	log.Info("scout controller up",
		"bridge", cfg.Bridge.URL,
		"mode", cfg.Task.Localization,
		"rate_hz", cfg.Control.RateHz,
		"waypoints", len(cfg.Waypoints))

	if err := server.Start(); err != nil {
		log.Error("api server failed", "err", err)
		os.Exit(1)
	}
}
