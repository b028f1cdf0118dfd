package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/zot/ezbridge/internal/apiset"
	"github.com/zot/ezbridge/internal/config"
	"github.com/zot/ezbridge/internal/feed"
	"github.com/zot/ezbridge/internal/hostabi"
	"github.com/zot/ezbridge/internal/logging"
	"github.com/zot/ezbridge/internal/lua"
	"github.com/zot/ezbridge/internal/metrics"
	"github.com/zot/ezbridge/internal/playerdb"
	"github.com/zot/ezbridge/internal/server"
)

// Host is the development stand-in for the host process: it owns the player registry,
// the script runtime and the surfaces that feed them.
type Host struct {
	Config  *config.Config
	Log     *zap.Logger
	Layout  *hostabi.Layout
	Store   playerdb.OfflineStore
	Players *playerdb.Registry
	Peers   *playerdb.PeerBook
	Metrics *metrics.Bridge
	Runtime *lua.Runtime
	Feed    *feed.Applier
	Server  *server.Server

	feedDone chan struct{}
}

// NewHost builds every component from cfg. Scripts are not run yet; see Start.
func NewHost(cfg *config.Config, log *zap.Logger) (*Host, error) {
	verbosity := cfg.Verbosity()
	h := &Host{Config: cfg, Log: log}

	layout, err := hostabi.LayoutFor(cfg.Host.Version)
	if err != nil {
		return nil, err
	}
	h.Layout = layout

	h.Store, err = playerdb.OpenStore(cfg.Storage.Type, cfg.Storage.Path, cfg.Storage.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Type, err)
	}
	if cfg.Storage.Seed != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := playerdb.Seed(ctx, h.Store, cfg.Storage.Seed)
		cancel()
		if err != nil {
			h.Store.Close()
			return nil, err
		}
		logging.Logf(log, verbosity, 1, "seeded %d offline players from %s", n, cfg.Storage.Seed)
	}

	h.Players = playerdb.New(h.Store, log,
		playerdb.WithQueryTimeout(cfg.Storage.Timeout.Duration()),
		playerdb.WithVerbosity(verbosity))
	h.Peers = playerdb.NewPeerBook()

	h.Metrics = metrics.New()
	h.Metrics.TrackGauge("ezbridge_players_online", "Players currently online", func() float64 {
		return float64(len(h.Players.GetData()))
	})

	h.Runtime, err = lua.NewRuntime(lua.Options{
		ScriptsDir: cfg.Scripts.Dir,
		Logger:     log,
		Verbosity:  verbosity,
		Metrics:    h.Metrics,
	})
	if err != nil {
		h.Store.Close()
		return nil, err
	}
	apiset.AttachPlayers(h.Runtime, h.Players, h.Peers)

	h.Feed = feed.NewApplier(h.Players, h.Peers, h.Layout, log, verbosity)
	h.Server = server.New(server.Options{
		Addr:      cfg.Server.Addr,
		Players:   h.Players,
		Peers:     h.Peers,
		Feed:      h.Feed,
		Metrics:   h.Metrics,
		Logger:    log,
		Verbosity: verbosity,
	})
	return h, nil
}

// Start runs main.lua, then starts the HTTP server and the feed reader when configured.
// It returns the bound HTTP address, or "" when the server is disabled.
func (h *Host) Start(ctx context.Context) (string, error) {
	if err := h.Runtime.RunMain(); err != nil {
		return "", err
	}

	var addr string
	if h.Config.Server.Addr != "" {
		var err error
		if addr, err = h.Server.Start(); err != nil {
			return "", err
		}
	}

	if path := h.Config.Feed.Path; path != "" {
		r, err := openFeed(path)
		if err != nil {
			return addr, err
		}
		h.feedDone = make(chan struct{})
		go func() {
			defer close(h.feedDone)
			defer r.Close()
			if err := h.Feed.ReadLines(ctx, r); err != nil && !errors.Is(err, context.Canceled) {
				h.Log.Sugar().Warnw("feed stopped", "path", path, "error", err)
			}
			applied, rejected := h.Feed.Stats()
			logging.Logf(h.Log, h.Config.Verbosity(), 1, "feed %s finished: %d applied, %d rejected", path, applied, rejected)
		}()
	}
	return addr, nil
}

// FeedDone is closed once the feed stream is exhausted. It is nil without a feed.
func (h *Host) FeedDone() <-chan struct{} {
	return h.feedDone
}

// Close stops the server and the runtime and releases the store.
func (h *Host) Close(ctx context.Context) error {
	err := h.Server.Shutdown(ctx)
	h.Runtime.Shutdown()
	if cerr := h.Store.Close(); err == nil {
		err = cerr
	}
	return err
}

func openFeed(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	return f, nil
}
