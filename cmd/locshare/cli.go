package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/locshare/locshare/internal/api"
	"github.com/locshare/locshare/internal/config"
	"github.com/locshare/locshare/internal/dispatcher"
	"github.com/locshare/locshare/internal/feed"
	"github.com/locshare/locshare/internal/geo"
	"github.com/locshare/locshare/internal/logging"
	"github.com/locshare/locshare/internal/monitor"
	"github.com/locshare/locshare/internal/parser"
	"github.com/locshare/locshare/internal/publisher"
	"github.com/locshare/locshare/internal/render"
	"github.com/locshare/locshare/internal/roster"
	"github.com/locshare/locshare/internal/server"
	"github.com/locshare/locshare/internal/store"
	"github.com/locshare/locshare/pkg/core"
)

// runServe runs the feed server: websocket feed, HTTP publish endpoint and
// write-behind persistence.
func runServe() error {
	namespace := viper.GetString("namespace")

	backend, err := store.NewBackend(config.GetStorageConfig())
	if err != nil {
		return fmt.Errorf("selecting storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage backend: %w", err)
	}
	defer backend.Close()

	writer := store.NewWriter(backend, config.GetStorageConfig().WriteInterval)
	writer.Start()
	defer writer.Stop()

	st := store.New(namespace, writer)

	snap, err := backend.LoadSnapshot(namespace)
	if err != nil {
		Logger.Warn("Failed to restore roster from storage", "error", err)
	} else if len(snap) > 0 {
		st.Restore(snap)
		Logger.Info("Restored roster from storage", "records", len(snap))
	}

	InfluxManager = connectInflux()

	monitorService := monitor.NewService(monitor.Dependencies{
		LogManager: SlogManager,
		Session:    Session,
		Store:      st,
		Writer:     writer,
		Influx:     InfluxManager,
		StatusDir:  viper.GetString("logsDir"),
	})
	monitorService.Start()
	defer monitorService.Stop()

	srv := server.New(st, server.Config{
		Addr:   viper.GetString("listen.addr"),
		Secret: viper.GetString("feed.secret"),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		Logger.Info("Shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	return srv.ListenAndServe()
}

// runView subscribes to the feed and reconciles snapshots onto a renderer.
// With a renderUrl configured, marker operations stream to the web frontend;
// otherwise they print to the console. Lines typed on stdin change the
// tracking filter (an empty line clears it).
func runView(filter string) error {
	var (
		renderer roster.Renderer
		journal  *render.Journal
	)
	if url := viper.GetString("viewer.renderUrl"); url != "" {
		ws := render.NewWebSocket(render.Config{
			URL:    url,
			Secret: viper.GetString("viewer.renderSecret"),
		})
		if err := ws.Connect(); err != nil {
			return fmt.Errorf("connecting renderer: %w", err)
		}
		defer ws.Close()
		renderer = ws
	} else {
		journal = render.NewJournal()
		renderer = journal
	}

	opts := []roster.Option{
		roster.WithCenterZoom(viper.GetInt("viewer.centerZoom")),
		roster.WithLogger(Logger),
	}
	if viper.GetBool("viewer.eagerFilter") {
		opts = append(opts, roster.WithEagerFilter())
	}

	recon, err := roster.New(renderer, opts...)
	if err != nil {
		return fmt.Errorf("creating reconciler: %w", err)
	}
	if filter != "" {
		recon.SetFilter(core.Identifier(filter))
	}

	disp, err := dispatcher.New(logging.NewDispatcherLogger(
		zerolog.New(LogFile).With().Timestamp().Logger(),
	))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	disp.Register("snapshot", func(e dispatcher.Event) (any, error) {
		recon.ApplySnapshot(e.Snapshot)
		if journal != nil {
			printOps(journal.Drain())
			printStatus(recon)
		}
		return nil, nil
	}, dispatcher.Buffered(64), dispatcher.Logged())

	disp.Register("set_filter", func(e dispatcher.Event) (any, error) {
		recon.SetFilter(e.Filter)
		if journal != nil {
			printOps(journal.Drain())
			printStatus(recon)
		}
		return nil, nil
	}, dispatcher.Logged())

	client := feed.NewClient(feedClientConfig())
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting feed: %w", err)
	}
	defer client.Close()

	err = client.Subscribe(func(snap core.Snapshot) {
		if _, err := disp.Dispatch(dispatcher.Event{
			Command:   "snapshot",
			Snapshot:  snap,
			Timestamp: time.Now(),
		}); err != nil {
			Logger.Debug("Snapshot dropped", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	Logger.Info("Subscribed to feed", "namespace", viper.GetString("namespace"), "filter", filter)

	InfluxManager = connectInflux()

	monitorService := monitor.NewService(monitor.Dependencies{
		LogManager: SlogManager,
		Session:    Session,
		Roster:     recon,
		Influx:     InfluxManager,
		StatusDir:  viper.GetString("logsDir"),
	})
	monitorService.Start()
	defer monitorService.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-sigCh:
			return nil
		case line, ok := <-lines:
			if !ok {
				// stdin closed, keep rendering until interrupted
				<-sigCh
				return nil
			}
			if line == "quit" || line == "exit" {
				return nil
			}
			disp.Dispatch(dispatcher.Event{
				Command:   "set_filter",
				Filter:    core.Identifier(line),
				Timestamp: time.Now(),
			})
		}
	}
}

// runPublish reads "lat,lon[,accuracy[,timestampMillis]]" lines from stdin
// and broadcasts them under the given identifier until interrupted. The
// record is withdrawn from the roster on exit.
func runPublish(identifier string) error {
	client := feed.NewClient(feedClientConfig())
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting feed: %w", err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub := publisher.New(
		core.Identifier(identifier),
		&stdinSource{id: identifier},
		client,
		publisher.WithLogger(Logger),
	)

	Logger.Info("Publishing from stdin", "identifier", identifier)
	err := pub.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runDemo runs the server in-process plus count synthetic random-walk
// publishers and a console viewer, all against the local feed.
func runDemo(count int) error {
	namespace := viper.GetString("namespace")

	backend := store.NewMemory()
	writer := store.NewWriter(backend, time.Second)
	writer.Start()
	defer writer.Stop()

	st := store.New(namespace, writer)
	srv := server.New(st, server.Config{
		Addr:   viper.GetString("listen.addr"),
		Secret: viper.GetString("feed.secret"),
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			Logger.Error("Server failed", "error", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	// give the listener a moment before the clients dial
	time.Sleep(200 * time.Millisecond)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	base, _, err := geo.PositionFromString(viper.GetString("demo.start"))
	if err != nil {
		return fmt.Errorf("invalid demo.start: %w", err)
	}
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("walker-%d", i+1)

		client := feed.NewClient(feedClientConfig())
		if err := client.Connect(); err != nil {
			return fmt.Errorf("connecting publisher %s: %w", id, err)
		}
		defer client.Close()

		walk := &publisher.RandomWalk{
			Start: core.Position{
				Lat: base.Lat + float64(i)*0.001,
				Lon: base.Lon + float64(i)*0.001,
			},
			Interval: time.Second,
		}

		pub := publisher.New(core.Identifier(id), walk, client, publisher.WithLogger(Logger))
		go func() {
			if err := pub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				Logger.Warn("Demo publisher stopped", "error", err)
			}
		}()
	}

	journal := render.NewJournal()
	recon, err := roster.New(journal, roster.WithLogger(Logger))
	if err != nil {
		return fmt.Errorf("creating reconciler: %w", err)
	}

	viewer := feed.NewClient(feedClientConfig())
	if err := viewer.Connect(); err != nil {
		return fmt.Errorf("connecting viewer: %w", err)
	}
	defer viewer.Close()

	err = viewer.Subscribe(func(snap core.Snapshot) {
		recon.ApplySnapshot(snap)
		printOps(journal.Drain())
	})
	if err != nil {
		return fmt.Errorf("subscribing viewer: %w", err)
	}

	fmt.Printf("demo running with %d publishers, Ctrl-C to stop\n", count)
	<-ctx.Done()
	return nil
}

// runExport takes one snapshot from the feed, renders it as GeoJSON and
// uploads it to the web frontend.
func runExport(filename string) error {
	client := feed.NewClient(feedClientConfig())
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting feed: %w", err)
	}
	defer client.Close()

	snapCh := make(chan core.Snapshot, 1)
	err := client.Subscribe(func(snap core.Snapshot) {
		select {
		case snapCh <- snap:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}

	var snap core.Snapshot
	select {
	case snap = <-snapCh:
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timed out waiting for a snapshot")
	}

	geojson, err := geo.FeatureCollection(snap)
	if err != nil {
		return fmt.Errorf("rendering export: %w", err)
	}

	frontend := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	err = frontend.UploadRoster(filename, geojson, core.UploadMetadata{
		Namespace:    viper.GetString("namespace"),
		Participants: len(snap),
		DurationSecs: Session.Elapsed().Seconds(),
		Tag:          "export",
	})
	if err != nil {
		return fmt.Errorf("uploading export: %w", err)
	}

	Logger.Info("Exported roster", "filename", filename, "records", len(snap))
	return nil
}

func feedClientConfig() feed.Config {
	feedCfg := config.GetFeedConfig()
	return feed.Config{
		URL:       feedCfg.URL,
		Secret:    feedCfg.Secret,
		Namespace: viper.GetString("namespace"),
	}
}

func printOps(ops []render.Op) {
	for _, op := range ops {
		switch op.Kind {
		case render.OpCenter:
			fmt.Printf("%-7s (%.5f, %.5f) zoom %d\n", op.Kind, op.Pos.Lat, op.Pos.Lon, op.Zoom)
		case render.OpRemove:
			fmt.Printf("%-7s %s\n", op.Kind, op.Identifier)
		default:
			fmt.Printf("%-7s %s (%.5f, %.5f)\n", op.Kind, op.Identifier, op.Pos.Lat, op.Pos.Lon)
		}
	}
}

func printStatus(recon *roster.Reconciler) {
	status := recon.LastStatus()
	switch status.Kind {
	case roster.StatusTracking:
		fmt.Printf("status: tracking %s\n", status.Key)
	case roster.StatusTrackingUnavailable:
		fmt.Printf("status: tracking %s (no position)\n", status.Key)
	default:
		fmt.Printf("status: showing all (%d visible)\n", recon.VisibleCount())
	}
}

// stdinSource turns stdin lines into location fixes for the publish mode.
type stdinSource struct {
	id string
}

func (s *stdinSource) Watch(ctx context.Context) (<-chan core.LocationRecord, error) {
	out := make(chan core.LocationRecord)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			rec, err := parser.ParseLine(s.id + "," + line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping line: %v\n", err)
				continue
			}

			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
