package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/alitto/pond/v2"
	"github.com/mcdexio/chain-collector/aggregator"
	"github.com/mcdexio/chain-collector/api"
	"github.com/mcdexio/chain-collector/calculator"
	"github.com/mcdexio/chain-collector/common/config"
	cerrors "github.com/mcdexio/chain-collector/common/errors"
	"github.com/mcdexio/chain-collector/common/logging"
	database "github.com/mcdexio/chain-collector/database/db"
	"github.com/mcdexio/chain-collector/gov"
	"github.com/mcdexio/chain-collector/metrics"
	"github.com/mcdexio/chain-collector/node"
	"github.com/mcdexio/chain-collector/notify"
	"github.com/mcdexio/chain-collector/parser"
	"github.com/mcdexio/chain-collector/scheduler"
	"github.com/mcdexio/chain-collector/snapshot"
	"github.com/mcdexio/chain-collector/syncer"
	"github.com/mcdexio/chain-collector/types"
	httpUtils "github.com/mcdexio/chain-collector/utils/http"
	"github.com/mcdexio/chain-collector/validator"
	"github.com/mcdexio/chain-collector/watcher"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	name := "collector"
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	opts := new(Options)
	arg.MustParse(opts)

	// Initialize logger.
	logging.Initialize(name)
	defer logging.Finalize()
	logger := logging.NewLoggerTag(name)

	// Setup panic handler.
	cerrors.Initialize(logger)
	defer cerrors.Catch()

	if err := opts.Validate(); err != nil {
		logger.Critical("invalid options: %s", err)
	}
	logger.Info("%s service started on %s", name, opts.ChainID)

	database.Initialize()
	defer database.Finalize()
	db := database.GetDB()
	if opts.ResetDB {
		if err := database.Reset(db, types.Collector, true); err != nil {
			logger.Critical("reset database: %s", err)
		}
	} else if err := database.Migrate(db, types.Collector); err != nil {
		logger.Critical("migrate database: %s", err)
	}
	store := database.NewStore(db)
	if opts.RewindHeight > 0 {
		n, err := store.DeleteBlocksFrom(context.Background(), opts.ChainID, opts.RewindHeight)
		if err != nil {
			logger.Critical("rewind to %d: %s", opts.RewindHeight, err)
		}
		logger.Info("rewound %d blocks from height %d", n, opts.RewindHeight)
	}

	taxCap, _ := opts.TaxCap()
	lcd := node.NewLCDClient(
		logging.NewLoggerTag("lcd"),
		httpUtils.NewHttpClient(nil, logger, opts.LCDURI,
			httpUtils.WithRateLimit(opts.NodeRPS, opts.NodeWorkers),
			httpUtils.WithObserver(metrics.NodeObserver("lcd"))),
		node.Pruning{KeepRecent: opts.PruningKeepRecent, KeepEvery: opts.PruningKeepEvery},
	)
	rpc := node.NewRPCClient(
		logging.NewLoggerTag("rpc"),
		httpUtils.NewHttpClient(nil, logger, opts.RPCURI,
			httpUtils.WithRateLimit(opts.NodeRPS, opts.NodeWorkers),
			httpUtils.WithObserver(metrics.NodeObserver("rpc"))),
	)

	pool := pond.NewPool(opts.NodeWorkers)
	defer pool.StopAndWait()

	backgroundCtx, stop := context.WithCancel(context.Background())
	go WaitExitSignal(stop, logger)
	group, ctx := errgroup.WithContext(backgroundCtx)

	agg := aggregator.New(logging.NewLoggerTag("aggregator"),
		aggregator.Config{ChainID: opts.ChainID, NativeDenom: opts.NativeDenom, StableDenom: opts.StableDenom},
		lcd, store, pool)
	syn := syncer.NewSynchronizer(logging.NewLoggerTag("syncer"),
		syncer.Config{
			ChainID:       opts.ChainID,
			NativeDenom:   opts.NativeDenom,
			StartHeight:   opts.StartHeight,
			DefaultTaxCap: taxCap,
		},
		lcd, rpc, store, agg, parser.NewExtractor(opts.Bech32Prefix), pool)

	tracked := validator.NewAddressSet()
	syn.OnIndexed(func(ix *syncer.Indexed) {
		metrics.Block(ix.ChainID, ix.Height, ix.Timestamp, ix.TxCount, ix.Sealed != nil, ix.Elapsed)
		tracked.Add(ix.Operators...)
		metrics.TrackedValidators.Set(float64(tracked.Len()))
	})

	if addr := config.GetString("REDIS_ADDR", ""); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.GetString("REDIS_PASSWORD", ""),
			DB:       config.GetInt("REDIS_DB", 0),
		})
		defer client.Close()
		notifier := notify.NewNotifier(logging.NewLoggerTag("notify"), client)
		syn.OnIndexed(func(ix *syncer.Indexed) {
			notifier.Enqueue(&notify.BlockIndexed{
				ChainID:   ix.ChainID,
				Height:    ix.Height,
				Timestamp: ix.Timestamp,
				Txs:       ix.TxCount,
			})
		})
		group.Go(func() error {
			return notifier.Run(ctx)
		})
	}

	driver := syncer.NewDriver(logging.NewLoggerTag("driver"), syn, opts.SyncInterval, opts.SyncErrorBackoff)
	driver.OnError = func(error) { metrics.SyncErrors.WithLabelValues(opts.ChainID).Inc() }
	driver.MarkDirty()
	group.Go(func() error {
		return driver.Run(ctx)
	})

	var monitor *watcher.Monitor
	w := watcher.New(logging.NewLoggerTag("watcher"), opts.WSURI,
		watcher.Options{
			RetryDelay: opts.WatcherRetryDelay,
			MaxRetry:   opts.WatcherMaxRetry,
			OnReconnect: func(int64) {
				metrics.WatcherReconnects.WithLabelValues("dropped").Inc()
			},
		},
		watcher.Subscription{Query: watcher.NewBlockQuery, Callback: func(watcher.Event) {
			driver.MarkDirty()
			monitor.Observe()
		}},
	)
	monitor = watcher.NewMonitor(logging.NewLoggerTag("monitor"), opts.HeartbeatWindow, w)
	monitor.OnRestart = func() { metrics.WatcherReconnects.WithLabelValues("stalled").Inc() }
	w.Start(ctx)
	group.Go(func() error {
		return monitor.Run(ctx)
	})
	group.Go(func() error {
		select {
		case <-w.Done():
			if ctx.Err() == nil {
				logger.Warn("watcher gave up, new blocks are found by polling only")
			}
		case <-ctx.Done():
			w.Close()
		}
		return nil
	})

	sch := scheduler.New(logging.NewLoggerTag("scheduler"), opts.JobTimeout, metrics.Job)
	if err := addJobs(sch, opts, driver, agg, lcd, rpc, store, pool, tracked); err != nil {
		logger.Critical("schedule jobs: %s", err)
	}
	group.Go(func() error {
		return sch.Run(ctx)
	})
	// Validators and the dashboard backlog are not worth waiting a full period for.
	sch.Trigger("validator")
	sch.Trigger("dashboard")

	server := api.NewInternalServer(logging.NewLoggerTag("api"), opts.InternalAddr, opts.ChainID, store,
		func() string { return w.State().String() })
	group.Go(func() error {
		return server.Run(ctx)
	})

	if err := group.Wait(); err != nil {
		logger.Critical("service stopped: %s", err)
	}
	logger.Info("%s service stopped", name)
}

func addJobs(
	sch *scheduler.Scheduler, opts *Options, driver *syncer.Driver, agg *aggregator.Aggregator,
	lcd *node.LCDClient, rpc *node.RPCClient, store *database.Store, pool pond.Pool, tracked *validator.AddressSet,
) error {
	refresher := validator.NewRefresher(logging.NewLoggerTag("validator"), lcd, store, pool, tracked)
	calc := calculator.NewCalculator(logging.NewLoggerTag("calculator"),
		calculator.Config{ChainID: opts.ChainID, NativeDenom: opts.NativeDenom, StableDenom: opts.StableDenom},
		store)
	var unvested httpUtils.IHttpClient
	if opts.UnvestedURL != "" {
		unvested = httpUtils.NewHttpClient(nil, logging.NewLoggerTag("unvested"), opts.UnvestedURL)
	}
	importer := snapshot.NewImporter(logging.NewLoggerTag("snapshot"),
		snapshot.Config{
			ChainID:     opts.ChainID,
			NativeDenom: opts.NativeDenom,
			StableDenom: opts.StableDenom,
			Size:        opts.RichListSize,
			CW20Tokens:  opts.Tokens(),
		},
		lcd, store, pool, unvested)
	proposals := gov.NewSyncer(logging.NewLoggerTag("gov"), opts.ChainID, lcd, store)

	jobs := []scheduler.Job{
		{Name: "poll", Spec: opts.PollSpec, Work: func(context.Context) error {
			driver.MarkDirty()
			return nil
		}},
		{Name: "validator", Spec: opts.ValidatorSpec, Work: refresher.Run},
		{Name: "return", Spec: opts.ReturnSpec, Work: func(ctx context.Context) error {
			_, err := calc.CalculateDay(ctx, aggregator.Day(time.Now()).AddDate(0, 0, -1))
			return err
		}},
		{Name: "dashboard", Spec: opts.DashboardSpec, Work: func(ctx context.Context) error {
			_, err := agg.CatchUpDashboards(ctx, time.Now())
			return err
		}},
		{Name: "snapshot", Spec: opts.SnapshotSpec, Work: importer.Run},
		{Name: "gov", Spec: opts.GovSpec, Work: proposals.Run},
		{Name: "mempool", Spec: opts.MempoolSpec, Work: func(ctx context.Context) error {
			pending, err := rpc.GetUnconfirmedTxs(ctx, 1)
			if err != nil || pending == nil {
				return err
			}
			metrics.MempoolTxs.WithLabelValues(opts.ChainID).Set(float64(pending.Total))
			return nil
		}},
	}
	for _, job := range jobs {
		if err := sch.Add(job); err != nil {
			return err
		}
	}
	return nil
}

func WaitExitSignal(ctxStop context.CancelFunc, logger logging.Logger) {
	var exitSignal = make(chan os.Signal, 1)
	signal.Notify(exitSignal, syscall.SIGTERM, syscall.SIGINT)

	sig := <-exitSignal
	logger.Info("caught sig: %+v, Stopping...", sig)
	ctxStop()
}
