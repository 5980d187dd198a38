package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"giftlist/internal/erp/memory"
	"giftlist/internal/fulfillment"
	fulfillmenthandler "giftlist/internal/fulfillment/handler"
	fulfillmentmetrics "giftlist/internal/fulfillment/metrics"
	listhandler "giftlist/internal/giftlist/handler"
	giftmetrics "giftlist/internal/giftlist/metrics"
	giftsvc "giftlist/internal/giftlist/service"
	itemstore "giftlist/internal/giftlist/store/item"
	liststore "giftlist/internal/giftlist/store/list"
	"giftlist/internal/jwttoken"
	"giftlist/internal/platform/config"
	"giftlist/internal/platform/httpserver"
	"giftlist/internal/platform/kafka"
	"giftlist/internal/platform/logger"
	"giftlist/internal/platform/metrics"
	redisclient "giftlist/internal/platform/redis"
	"giftlist/internal/reconcile"
	reconcilehandler "giftlist/internal/reconcile/handler"
	reconcilemetrics "giftlist/internal/reconcile/metrics"
	httptransport "giftlist/internal/transport/http"
	"giftlist/internal/walletpay"
	wallethandler "giftlist/internal/walletpay/handler"
	"giftlist/internal/walletpay/lock"
	walletmetrics "giftlist/internal/walletpay/metrics"
	walletstore "giftlist/internal/walletpay/store"
	workflowhandler "giftlist/internal/workflow/handler"
	workflowmetrics "giftlist/internal/workflow/metrics"
	"giftlist/internal/workflow/ratelimit"
	"giftlist/internal/workflow/recorder"
	"giftlist/internal/workflow/relay"
	"giftlist/internal/workflow/secrets"
	workflowstore "giftlist/internal/workflow/store"
	"giftlist/migrations"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/tx"
)

const (
	shutdownTimeout = 10 * time.Second
	topicPartitions = 3
)

// workflowStore is what both the recorder and the outbox relay need.
type workflowStore interface {
	recorder.Store
	relay.Outbox
}

type stores struct {
	items    giftsvc.ItemStore
	lists    giftsvc.ListStore
	wallets  walletpay.Store
	workflow workflowStore
	tx       tx.Runner
	db       *sql.DB
	pool     *pgxpool.Pool
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// openStores uses Postgres when DATABASE_URL is set and in-memory stores otherwise.
func openStores(ctx context.Context, dsn string, log *slog.Logger) (*stores, error) {
	if dsn == "" {
		log.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
		return &stores{
			items:    itemstore.NewInMemory(),
			lists:    liststore.NewInMemory(),
			wallets:  walletstore.NewInMemory(),
			workflow: workflowstore.NewInMemory(),
			tx:       tx.NewSharded(),
		}, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &stores{
		items:    itemstore.NewPostgres(db),
		lists:    liststore.NewPostgres(db),
		wallets:  walletstore.NewPostgres(pool),
		workflow: workflowstore.NewPostgres(db),
		tx:       tx.NewSQL(db),
		db:       db,
		pool:     pool,
	}, nil
}

// walletProgram resolves the eWallet product. Without a configured product the
// simulator gets one so local runs can settle gift payments.
func walletProgram(ctx context.Context, cfg config.WalletConfig, sim *memory.Simulator, log *slog.Logger) (walletpay.Program, error) {
	if cfg.ProgramProductID != "" {
		productID, err := id.ParseProductID(cfg.ProgramProductID)
		if err != nil {
			return walletpay.Program{}, fmt.Errorf("EWALLET_PRODUCT_ID: %w", err)
		}
		return walletpay.Program{ProductID: productID, Name: cfg.ProgramName}, nil
	}
	product := sim.AddProduct(cfg.ProgramName, decimal.Zero, decimal.Zero)
	log.InfoContext(ctx, "seeded eWallet program product", "product_id", product.ID, "name", product.Name)
	return walletpay.Program{ProductID: product.ID, Name: cfg.ProgramName}, nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("giftlist exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer st.Close()

	rc, err := redisclient.New(cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, cfg.Kafka.WorkflowTopic, topicPartitions, -1); err != nil {
			return err
		}
	}

	policy, err := walletpay.ParseNetPolicy(cfg.Wallet.NetPolicy)
	if err != nil {
		return err
	}

	sim := memory.New(memory.WithLocations(memory.Locations{
		Stock:    cfg.Stock.StockLocation,
		Customer: cfg.Stock.CustomerLocation,
		Supplier: cfg.Stock.SupplierLocation,
	}))
	program, err := walletProgram(ctx, cfg.Wallet, sim, log)
	if err != nil {
		return err
	}

	wfMetrics := workflowmetrics.New()
	rec := recorder.New(st.workflow,
		recorder.WithLogger(log),
		recorder.WithMetrics(wfMetrics),
		recorder.WithEnabledDocuments(cfg.Workflow.EnabledDocuments),
	)

	walletMetrics := walletmetrics.New()
	ledger := walletpay.NewLedger(st.wallets,
		walletpay.WithLedgerLogger(log),
		walletpay.WithLedgerMetrics(walletMetrics),
		walletpay.WithProgram(program.Name),
	)

	gifts := giftsvc.New(st.items, st.lists, sim,
		giftsvc.WithLogger(log),
		giftsvc.WithMetrics(giftmetrics.New()),
		giftsvc.WithWallets(ledger),
		giftsvc.WithRefunder(ledger),
		giftsvc.WithRecorder(rec),
		giftsvc.WithTxRunner(st.tx),
	)
	fulfil := fulfillment.New(gifts, sim,
		fulfillment.WithLogger(log),
		fulfillment.WithMetrics(fulfillmentmetrics.New()),
		fulfillment.WithRecorder(rec),
		fulfillment.WithLocations(fulfillment.Locations{
			Stock:    cfg.Stock.StockLocation,
			Pending:  cfg.Stock.PendingLocation,
			Customer: cfg.Stock.CustomerLocation,
		}),
	)
	gifts.Observe(fulfil)
	recon := reconcile.New(gifts, sim,
		reconcile.WithLogger(log),
		reconcile.WithMetrics(reconcilemetrics.New()),
		reconcile.WithRecorder(rec),
		reconcile.WithHolder(fulfil),
	)

	settlerOpts := []walletpay.SettlerOption{
		walletpay.WithLogger(log),
		walletpay.WithMetrics(walletMetrics),
		walletpay.WithRecorder(rec),
		walletpay.WithDeliveries(recon),
		walletpay.WithNetPolicy(policy),
		walletpay.WithEWalletProgram(program),
	}

	var primaryLimiter ratelimit.Limiter
	if rc != nil {
		primaryLimiter = ratelimit.NewRedis(rc.Client)
		settlerOpts = append(settlerOpts, walletpay.WithLocker(lock.NewRedis(rc.Client, cfg.Wallet.LockTTL)))
	}
	limiter := ratelimit.NewFallback(primaryLimiter, log)
	settler := walletpay.NewSettler(sim, ledger, recon.Payments, gifts, fulfil, settlerOpts...)

	tokens := jwttoken.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	if len(cfg.Auth.WebhookAPIKeyHashes) == 0 {
		log.WarnContext(ctx, "WEBHOOK_API_KEY_HASHES not set, webhooks will reject every call")
	}

	wfHandler := workflowhandler.New(rec, sim.Stock(), limiter, log,
		workflowhandler.WithMetrics(wfMetrics),
		workflowhandler.WithRateLimit(cfg.Workflow.WebhookLimit, cfg.Workflow.WebhookWindow),
	)
	routerOpts := []httptransport.Option{
		httptransport.WithMetrics(metrics.New()),
		httptransport.WithServiceName(cfg.ServiceName),
		httptransport.WithOperatorRoutes(
			listhandler.New(gifts, log),
			fulfillmenthandler.New(fulfil, log),
			reconcilehandler.New(recon, log),
			wallethandler.New(settler, ledger, log),
			wfHandler,
		),
		httptransport.WithWebhookRoutes(wfHandler),
	}
	if st.db != nil {
		routerOpts = append(routerOpts, httptransport.WithHealthCheck("postgres", st.db.PingContext))
	}
	if rc != nil {
		routerOpts = append(routerOpts, httptransport.WithHealthCheck("redis", rc.Health))
	}
	if producer != nil {
		routerOpts = append(routerOpts, httptransport.WithHealthCheck("kafka", producer.Ping))
	}
	router := httptransport.New(log, jwttoken.NewAdapter(tokens), secrets.NewKeyVerifier(cfg.Auth.WebhookAPIKeyHashes...), routerOpts...)

	srv := httpserver.New(context.WithoutCancel(ctx), cfg.Addr, router.Handler(), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting giftlist", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.InfoContext(shutdownCtx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if producer != nil {
		worker := relay.NewWorker(st.workflow, producer, cfg.Kafka.WorkflowTopic,
			relay.WithLogger(log),
			relay.WithMetrics(wfMetrics),
			relay.WithInterval(cfg.Kafka.RelayInterval),
			relay.WithBatchSize(cfg.Kafka.RelayBatch),
		)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}
	return g.Wait()
}
