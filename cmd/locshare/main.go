package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/locshare/locshare/internal/config"
	"github.com/locshare/locshare/internal/influx"
	"github.com/locshare/locshare/internal/logging"
	intOtel "github.com/locshare/locshare/internal/otel"
	"github.com/locshare/locshare/internal/session"
)

// version info - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "locshare"
)

// file paths
var (
	// ConfigDir is where locshare.cfg.json is looked up.
	ConfigDir string = "."

	LogFilePath string
	LogFile     *os.File

	InfluxBackupPath string
)

// global services
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// InfluxManager writes periodic metrics points
	InfluxManager *influx.Manager

	// Session is the shared session context
	Session *session.Context

	SessionStartTime time.Time = time.Now()
)

func init() {
	var err error

	// Initialize slog manager with initial config so early failures are visible
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	// load config
	err = loadConfig()
	if err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	// create logs dir if it doesn't exist
	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)

	// keep a previous run's file with the same timestamp out of the way
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}

	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath)
		}
	}

	// Re-setup logging with file output, optional OTel bridge and optional GELF
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	var extraHandlers []slog.Handler
	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		gelfHandler, err := logging.NewGelfHandler(graylogCfg.Address, logging.ParseLevel(viper.GetString("logLevel")))
		if err != nil {
			Logger.Error("Failed to initialize Graylog handler", "error", err, "address", graylogCfg.Address)
		} else {
			extraHandlers = append(extraHandlers, gelfHandler)
			Logger.Info("Graylog handler initialized", "address", graylogCfg.Address)
		}
	}

	SlogManager.Setup(LogFile, viper.GetString("logLevel"), otelLogProvider, extraHandlers...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)

	Session = session.NewContext(viper.GetString("namespace"))

	InfluxBackupPath = logging.LogFilePath(logsDir, AppName+"_influx_backup", SessionStartTime) + ".gz"

	go checkFrontendStatus()
}

func loadConfig() (err error) {
	return config.Load(ConfigDir)
}

// connectInflux initializes the InfluxDB manager. Returns nil when metrics
// are disabled in config.
func connectInflux() *influx.Manager {
	if !viper.GetBool("influx.enabled") {
		Logger.Info("InfluxDB metrics disabled")
		return nil
	}

	zlog := zerolog.New(LogFile).With().Timestamp().Logger()
	manager := influx.NewManager(zlog, InfluxBackupPath)
	if err := manager.Connect(); err != nil {
		Logger.Warn("InfluxDB connection failed, metrics unavailable", "error", err)
		return nil
	}
	return manager
}

func checkFrontendStatus() {
	// check if frontend is running by making a healthcheck API request
	_, err := http.Get(viper.GetString("api.serverUrl") + "/healthcheck")
	if err != nil {
		Logger.Info("Web frontend is offline")
	} else {
		Logger.Info("Web frontend is online")
	}
}

// flushTelemetry flushes OTel data before exit.
func flushTelemetry() {
	if OTelProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := OTelProvider.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush OTel data", "error", err)
	}
	if err := OTelProvider.Shutdown(ctx); err != nil {
		Logger.Warn("Failed to shut down OTel provider", "error", err)
	}
}

func usage() {
	fmt.Printf("locshare %s (built %s)\n\n", CurrentVersion, BuildDate)
	fmt.Println("Usage: locshare <mode> [args]")
	fmt.Println()
	fmt.Println("Modes:")
	fmt.Println("  serve                 run the feed server")
	fmt.Println("  view [identifier]     subscribe and reconcile, optionally tracking one identifier")
	fmt.Println("  publish <identifier>  publish location lines from stdin")
	fmt.Println("  demo [n]              run server plus n synthetic publishers (default 3)")
	fmt.Println("  export [filename]     upload a GeoJSON export of the roster to the frontend")
}

func main() {
	defer flushTelemetry()

	Logger.Info("Starting up...", "version", CurrentVersion, "buildDate", BuildDate)

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		return
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "serve":
		err = runServe()
	case "view":
		filter := ""
		if len(args) > 1 {
			filter = args[1]
		}
		err = runView(filter)
	case "publish":
		if len(args) < 2 {
			fmt.Println("publish requires an identifier")
			usage()
			os.Exit(2)
		}
		err = runPublish(args[1])
	case "demo":
		count := 3
		if len(args) > 1 {
			fmt.Sscanf(args[1], "%d", &count)
		}
		err = runDemo(count)
	case "export":
		filename := "roster.geojson"
		if len(args) > 1 {
			filename = args[1]
		}
		err = runExport(filename)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		Logger.Error("Exiting with error", "error", err)
		flushTelemetry()
		os.Exit(1)
	}
}
