// Command toonloop cartoonizes a live video stream at interactive frame
// rate, adapting processing resolution and frame coverage to the measured
// per-frame cost of the host.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"toonloop/internal/capture"
	"toonloop/internal/cartoon"
	"toonloop/internal/config"
	"toonloop/internal/display"
	"toonloop/internal/logger"
	"toonloop/internal/loop"
	"toonloop/internal/opencv/memory"
	"toonloop/internal/quality"
	"toonloop/internal/shutdown"
	"toonloop/internal/telemetry"
	"toonloop/internal/vision"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		deviceID    int
		videoFile   string
		listenAddr  string
		tickMs      int
		constrained bool
		headless    bool
		presetPath  string
		logLevel    string
		intensity   float64
	)

	cmd := &cobra.Command{
		Use:   "toonloop",
		Short: "Adaptive real-time video cartoonizer",
		Long: "toonloop pulls frames from a camera or video file, runs an " +
			"edge-preserving cartoonize pipeline on each one, and presents the " +
			"result live. A latency feedback loop trades resolution and frame " +
			"coverage for throughput so the stream stays interactive on any " +
			"hardware tier.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			flags := cmd.Flags()
			if flags.Changed("device") {
				cfg.DeviceID = deviceID
			}
			if flags.Changed("file") {
				cfg.VideoFile = videoFile
			}
			if flags.Changed("listen") {
				cfg.ListenAddr = listenAddr
			}
			if flags.Changed("tick-ms") {
				cfg.TickIntervalMs = tickMs
			}
			if flags.Changed("constrained") {
				cfg.Constrained = constrained
			}
			if flags.Changed("headless") {
				cfg.Headless = headless
			}
			if flags.Changed("preset") {
				cfg.PresetPath = presetPath
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			return run(cfg, flags.Changed("intensity"), intensity)
		},
	}

	cmd.Flags().IntVar(&deviceID, "device", 0, "capture device id")
	cmd.Flags().StringVar(&videoFile, "file", "", "stream from a video file instead of a device")
	cmd.Flags().StringVar(&listenAddr, "listen", ":8654", "telemetry websocket listen address")
	cmd.Flags().IntVar(&tickMs, "tick-ms", 33, "scheduling tick interval in milliseconds")
	cmd.Flags().BoolVar(&constrained, "constrained", false, "treat the host as a constrained (mobile-class) device")
	cmd.Flags().BoolVar(&headless, "headless", false, "run without a preview window")
	cmd.Flags().StringVar(&presetPath, "preset", "", "YAML filter preset file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().Float64Var(&intensity, "intensity", 1.0, "effect intensity in [0,1]")

	return cmd
}

func run(cfg *config.Config, intensitySet bool, intensity float64) error {
	log := logger.NewConsoleLogger(logger.ParseLevel(cfg.LogLevel))

	params := cartoon.DefaultParameters()
	if cfg.PresetPath != "" {
		loaded, err := config.LoadPreset(cfg.PresetPath)
		if err != nil {
			return err
		}
		params = loaded
	}
	if intensitySet {
		params.Intensity = intensity
	}
	if err := params.Validate(); err != nil {
		return err
	}

	log.Info("Main", "starting", map[string]interface{}{
		"constrained": cfg.Constrained,
		"headless":    cfg.Headless,
		"tick_ms":     cfg.TickIntervalMs,
	})

	pool := memory.NewPool(8)
	prims := vision.NewOpenCV(pool)
	stage := cartoon.NewStage(prims, pool, log)
	controller := quality.NewController(cfg.Constrained, log)

	var (
		cam *capture.Camera
		err error
	)
	if cfg.VideoFile != "" {
		cam, err = capture.OpenFile(cfg.VideoFile, log)
	} else {
		cam, err = capture.OpenDevice(cfg.DeviceID, log)
	}
	if err != nil {
		return err
	}

	hub := telemetry.NewHub(log)
	go hub.Run()
	server := telemetry.NewServer(cfg.ListenAddr, hub, log)
	server.Start()

	var frameLoop *loop.Loop
	var renderer loop.Renderer
	var viewer *display.Viewer
	if cfg.Headless {
		renderer = display.NewNull()
	} else {
		viewer = display.NewViewer("toonloop", func() {
			if frameLoop != nil {
				frameLoop.RequestTierCycle()
			}
		}, log)
		renderer = viewer
	}

	frameLoop = loop.New(cam, renderer, stage, controller, prims, pool, hub, params, log)

	manager := shutdown.NewManager(log)
	manager.Register("telemetry server", server)
	manager.Register("telemetry hub", hub)
	manager.Register("capture", cam)
	manager.Register("frame loop", frameLoop)
	if viewer != nil {
		manager.Register("viewer", viewer)
	}
	manager.Listen()

	interval := time.Duration(cfg.TickIntervalMs) * time.Millisecond
	go frameLoop.Run(manager.Context(), interval)

	if cfg.Headless {
		<-manager.Done()
	} else {
		// Blocks on the UI event loop; closing the window falls through.
		viewer.Run()
		manager.Shutdown()
	}

	leftover := pool.Cleanup()
	log.Info("Main", "exited", map[string]interface{}{
		"pooled_mats_released": leftover,
	})
	return nil
}
