package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const version = "0.3.0"

func printVersion() {
	fmt.Printf("omniscrolld v%s\n", version)
	fmt.Println("Omni-directional scroll gesture daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  omniscrolld [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Turns raw two-axis motion (mouse, trackball, serial sensor, IPC, MQTT)")
	fmt.Println("  into discrete vertical or horizontal scroll steps and publishes them")
	fmt.Println("  over WebSocket, MQTT and the log.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file; flags override individual fields")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Linux input event device (e.g. /dev/input/event3)")
	fmt.Println()
	fmt.Println("  -activation-key int")
	fmt.Println("        EV_KEY code that must be held while scrolling; 0 = always active")
	fmt.Printf("        Common buttons: %d left, %d right, %d middle, %d side, %d extra\n",
		BTN_LEFT, BTN_RIGHT, BTN_MIDDLE, BTN_SIDE, BTN_EXTRA)
	fmt.Println()
	fmt.Println("  -release-timeout-ms int")
	fmt.Printf("        Idle time that ends an always-active gesture (default %d; 0 disables)\n", defaultReleaseTimeoutMS)
	fmt.Println()
	fmt.Println("  -threshold int, -vertical-bias int, -horizontal-bias int, -smoothing int, -diagonal-threshold int")
	fmt.Println("        Classifier tuning (biases are x10 fixed point; smoothing 1..5)")
	fmt.Println()
	fmt.Println("  -serial-port string, -serial-baud int")
	fmt.Printf("        Serial sample source (default baud %d)\n", defaultSerialBaudRate)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocketPath)
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Printf("        HTTP port for /ws, /state and /healthz (default %d; 0 disables)\n", defaultHTTPPort)
	fmt.Println()
	fmt.Println("  -mqtt-broker string, -mqtt-topic string")
	fmt.Printf("        MQTT bridge (default topic %q)\n", defaultMQTTTopic)
	fmt.Println()
	fmt.Println("  -log-level string, -log-format string")
	fmt.Println("        Log level: error, warn, info, debug; format: text or json")
	fmt.Println()
	fmt.Println("  -version, -help")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  omniscrolld -input-device /dev/input/event3 -activation-key 274")
	fmt.Println("  omniscrolld -config ~/.config/omniscroll/config.yaml -log-level debug")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input devices (run as root or add user to 'input' group)")
	fmt.Println()
}

func main() {
	var (
		configPath        = flag.String("config", "", "YAML config file")
		inputDevice       = flag.String("input-device", "", "Linux input event device")
		activationKey     = flag.Int("activation-key", 0, "EV_KEY code to hold while scrolling (0 = always active)")
		releaseTimeoutMS  = flag.Int("release-timeout-ms", defaultReleaseTimeoutMS, "Idle release timeout in ms (0 disables)")
		threshold         = flag.Int("threshold", 0, "Minimum L1 magnitude of the smoothed delta")
		verticalBias      = flag.Int("vertical-bias", 0, "Vertical weight (x10 fixed point)")
		horizontalBias    = flag.Int("horizontal-bias", 0, "Horizontal weight (x10 fixed point)")
		smoothing         = flag.Int("smoothing", 0, "Smoothing window size (1..5)")
		diagonalThreshold = flag.Int("diagonal-threshold", 0, "Reserved; accepted but not used")
		serialPort        = flag.String("serial-port", "", "Serial port for the serial sample source")
		serialBaud        = flag.Int("serial-baud", defaultSerialBaudRate, "Serial baud rate")
		ipcSocketPath     = flag.String("ipc-socket", defaultIPCSocketPath, "Unix domain socket path for IPC (empty disables)")
		httpPort          = flag.Int("http-port", defaultHTTPPort, "HTTP port (0 disables)")
		mqttBroker        = flag.String("mqtt-broker", "", "MQTT broker URL (enables the MQTT bridge)")
		mqttTopic         = flag.String("mqtt-topic", defaultMQTTTopic, "MQTT topic for scroll events")
		logLevelStr       = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		logFormat         = flag.String("log-format", "text", "Log format: text or json")
		showVersion       = flag.Bool("version", false, "Print version and exit")
		showHelp          = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the config file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input-device":
			o.InputDevice = inputDevice
		case "activation-key":
			o.ActivationKey = activationKey
		case "release-timeout-ms":
			o.ReleaseTimeoutMS = releaseTimeoutMS
		case "threshold":
			o.Threshold = threshold
		case "vertical-bias":
			o.VerticalBias = verticalBias
		case "horizontal-bias":
			o.HorizontalBias = horizontalBias
		case "smoothing":
			o.Smoothing = smoothing
		case "diagonal-threshold":
			o.DiagonalThreshold = diagonalThreshold
		case "serial-port":
			o.SerialPort = serialPort
		case "serial-baud":
			o.SerialBaudRate = serialBaud
		case "ipc-socket":
			o.IPCSocketPath = ipcSocketPath
		case "http-port":
			o.HTTPPort = httpPort
		case "mqtt-broker":
			o.MQTTBroker = mqttBroker
		case "mqtt-topic":
			o.MQTTTopic = mqttTopic
		case "log-level":
			o.LogLevel = logLevelStr
		case "log-format":
			o.LogFormat = logFormat
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	instanceID := uuid.NewString()
	level, _ := parseLogLevel(cfg.Logging.Level) // validated above
	logger := setupLogger(os.Stdout, level, cfg.Logging.Format, instanceID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, instanceID, logger); err != nil {
		logger.Error("omniscrolld stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

// run starts every configured source and sink and blocks until ctx is
// canceled or one of them fails.
func run(ctx context.Context, cfg Config, instanceID string, logger *slog.Logger) error {
	lifecycle := cfg.ToLifecycleConfig()
	state, err := NewDaemonState(cfg.ToClassifierConfig(), lifecycle, instanceID)
	if err != nil {
		return fmt.Errorf("init classifier: %w", err)
	}

	logger.Debug("configuration",
		"classifier", cfg.Classifier,
		"input_devices", cfg.Input.Devices,
		"activation_key", cfg.Input.ActivationKey,
		"release_timeout_ms", cfg.Input.ReleaseTimeoutMS,
		"serial", cfg.Serial.Enabled,
		"ipc_socket", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port,
		"mqtt", cfg.MQTT.Enabled)

	events := make(chan Event, defaultEventsBuffer)
	sinks := []Sink{newLogSink(logger)}

	// Everything that can fail at startup happens before the first goroutine
	// is started, so an early return leaves nothing running.
	srcCtx, cancelSrc := context.WithCancel(ctx)
	defer cancelSrc()

	if cfg.MQTT.Enabled {
		client, err := connectMQTT(srcCtx, cfg.MQTT, instanceID, events, logger)
		if err != nil {
			return err
		}
		defer func() {
			cancelSrc()
			disconnectMQTT(client)
		}()
		sinks = append(sinks, newMQTTSink(client, cfg.MQTT.Topic, cfg.MQTT.QoS, logger))
	}

	var inputFiles []*os.File
	if len(cfg.Input.Devices) > 0 {
		inputFiles, err = openInputDevices(cfg.Input.Devices)
		if err != nil {
			return fmt.Errorf("%w (run as root or add user to 'input' group)", err)
		}
	}

	g, gctx := errgroup.WithContext(srcCtx)

	if cfg.HTTP.Port > 0 {
		ws := NewEventServer(logger, events, HubConfig{})
		sinks = append(sinks, newWSSink(ws.Hub()))
		g.Go(func() error {
			ws.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.Port, newHTTPMux(ws, events, logger), logger)
		})
	}

	g.Go(func() error {
		runDaemon(gctx, events, state, lifecycle, sinks, defaultTickHz, logger)
		return nil
	})

	if cfg.IPC.SocketPath != "" {
		g.Go(func() error {
			return runIPCServer(gctx, ExpandPath(cfg.IPC.SocketPath), events, logger)
		})
	}

	if cfg.Serial.Enabled {
		g.Go(func() error {
			return runSerialSource(gctx, cfg.Serial, events, logger)
		})
	}

	if len(inputFiles) > 0 {
		g.Go(func() error {
			return runInputSource(gctx, inputFiles, cfg.Input.Epoll, cfg.Input.ActivationKey, events, logger)
		})
	}

	logger.Info("listening",
		"input_devices", cfg.Input.Devices,
		"ipc", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port,
		"serial_port", cfg.Serial.Port,
		"mqtt_broker", cfg.MQTT.Broker)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
