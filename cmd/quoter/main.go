package main

import (
	"context"
	"flag"
	"os"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"quoter/internal/dispatch"
	"quoter/internal/journal"
	"quoter/internal/obs"
	"quoter/internal/ops"
	"quoter/internal/prioritizer"
	"quoter/internal/state"
	"quoter/internal/strategy"
	"quoter/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.json", "path to JSON config")
	envPath := flag.String("env", "", "optional .env file with credentials")
	flag.Parse()

	if err := run(*configPath, *envPath); err != nil {
		logs.Errorf("quoter exited: %+v", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return errors.Wrap(err, "load env file")
		}
	} else {
		_ = godotenv.Load()
	}

	loaded, err := ops.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	if loaded.ProfilingAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "quoter",
			ServerAddress:   loaded.ProfilingAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Warnf("profiling disabled: %+v", err)
		} else {
			defer profiler.Stop()
		}
	}

	recorder := journal.Recorder(journal.Nop{})
	if loaded.JournalDSN != "" {
		db, err := journal.OpenPostgres(loaded.JournalDSN)
		if err != nil {
			return errors.Wrap(err, "open order journal")
		}
		defer db.Close()
		recorder = db
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := obs.NewMetrics()
	store := state.NewStore()

	entry := transport.NewOrderEntry(transport.OrderEntryConfig{
		BaseURL:  loaded.Exchange.HTTPEndpoint,
		Username: loaded.Exchange.Username,
		APIKey:   loaded.Exchange.APIKey,
	}, nil)

	buildup, err := entry.Buildup(ctx)
	if err != nil {
		return errors.Wrap(err, "user buildup")
	}
	for instrument, seed := range buildup.Books {
		store.SeedBook(instrument, seed.Bids, seed.Asks)
	}
	logs.Infof("session established: seeded %d instruments", len(buildup.Books))

	gate := prioritizer.New(prioritizer.Config{
		Window:           loaded.Rate.Window,
		Limit:            loaded.Rate.Limit,
		QueueDepth:       loaded.Rate.QueueDepth,
		DrainOnReconnect: loaded.Rate.DrainOnReconnect,
		SendTimeout:      loaded.Rate.SendTimeout,
	}, entry, metrics, recorder)
	go gate.Run(ctx)

	dispatcher := dispatch.NewDispatcher(store, metrics, loaded.QueueDepth)
	dispatcher.SetStrategy(strategy.NewNaive(loaded.Strategy, gate))
	go dispatcher.Run(ctx)

	feed := transport.NewFeed(transport.FeedConfig{
		URL:          loaded.Exchange.WSEndpoint,
		Username:     loaded.Exchange.Username,
		SessionToken: buildup.SessionToken,
		OnDown: func() {
			store.MarkStale(state.StreamOrderbook)
			store.MarkStale(state.StreamPortfolio)
			gate.Pause()
		},
		OnUp: func() {
			gate.Resume()
		},
	}, dispatcher, metrics)
	feed.Start(ctx)

	<-sys.Shutdown()
	logs.Info("shutting down")

	feed.Stop()
	gate.Close()
	dispatcher.Close()
	cancel()

	snap := metrics.Snapshot()
	logs.Infof(
		"session stats: book_events=%d portfolio_events=%d event_drops=%d forwards=%d cancel_bypasses=%d request_drops=%d rejections=%d transport_errors=%d reconnects=%d strategy_faults=%d",
		snap.BookEvents, snap.PortfolioEvents, snap.EventDrops,
		snap.Forwards, snap.CancelBypasses, snap.RequestDrops,
		snap.Rejections, snap.TransportErrors, snap.Reconnects, snap.StrategyFaults,
	)
	return nil
}
