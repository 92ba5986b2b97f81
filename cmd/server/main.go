package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"mgcore/internal/economy/adapter"
	"mgcore/internal/economy/auction"
	"mgcore/internal/economy/canon"
	"mgcore/internal/economy/eligibility"
	"mgcore/internal/economy/governance"
	"mgcore/internal/economy/handler"
	"mgcore/internal/platform/config"
	"mgcore/internal/platform/httpserver"
	"mgcore/internal/platform/logger"
	"mgcore/internal/platform/metrics"
	platformredis "mgcore/internal/platform/redis"
	"mgcore/internal/psee/consumer"
	"mgcore/internal/psee/events"
	"mgcore/internal/psee/readmodel"
	kafkasource "mgcore/internal/psee/source/kafka"
	pgsource "mgcore/internal/psee/source/postgres"
	audit "mgcore/pkg/platform/audit"
	auditconsumer "mgcore/pkg/platform/audit/consumer"
	"mgcore/pkg/platform/audit/publishers/compliance"
	"mgcore/pkg/platform/audit/store/memory"
	auditpostgres "mgcore/pkg/platform/audit/store/postgres"
	auditredis "mgcore/pkg/platform/audit/store/redis"
	"mgcore/pkg/platform/audit/worker"
	"mgcore/pkg/platform/tx"
)

const outboxSize = 1024

// main wires the economy adapter, the PSEE read model and the HTTP surface,
// then runs them until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("mgcore stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("mgcore stopped")
}

type infra struct {
	db    *sql.DB
	redis *platformredis.Client
}

func (i *infra) close() {
	if i.db != nil {
		_ = i.db.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	deps := &infra{}
	defer deps.close()

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("ping database: %w", err)
		}
		deps.db = db
	}
	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	deps.redis = rc

	backend, err := auditStore(cfg, deps)
	if err != nil {
		return err
	}

	registry := canon.NewRegistry()
	policy, err := governance.LoadPolicy(cfg.Economy.GovernancePolicy)
	if err != nil {
		return err
	}
	engines := adapter.Engines{
		Eligibility: eligibility.New(registry, eligibility.WithFloor(cfg.Economy.BalanceFloor)),
		Auction:     auction.New(registry),
		Governance:  governance.New(registry, governance.WithPolicy(policy)),
	}

	outbox := worker.NewOutbox(outboxSize)
	opts := []adapter.Option{
		adapter.WithOutbox(outbox),
		adapter.WithAuditTimeout(cfg.Economy.AuditTimeout),
		adapter.WithMetrics(adapter.NewMetrics()),
		adapter.WithLogger(log),
		adapter.WithTransactor(backend.tx),
		adapter.WithAuditReader(backend.reader),
	}
	primary := compliance.New(backend.store, compliance.WithLogger(log), compliance.WithMetrics(compliance.NewMetrics()))
	economy := adapter.New(primary, engines, opts...)

	model := readmodel.New(registry, readmodel.WithLogger(log))
	source, closeSource, err := eventSource(cfg, deps, log)
	if err != nil {
		return err
	}
	defer closeSource()

	srv := httpserver.New(cfg.Addr, handler.NewRouter(handler.New(economy, model, log), metrics.New(), log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting mgcore", "addr", cfg.Addr, "audit_backend", cfg.AuditStore, "event_source", cfg.EventSource)
		return httpserver.Serve(gctx, srv)
	})
	g.Go(func() error {
		return worker.NewWorker(outboxRouter(cfg, deps, log), outbox.Inbox(), log).Run(gctx)
	})
	if source != nil {
		g.Go(func() error {
			stats, cursor, err := readmodel.Rebuild(gctx, source, model, readmodel.WithFetchTimeout(cfg.PSEE.FetchTimeout))
			if err != nil {
				return fmt.Errorf("rebuild read model: %w", err)
			}
			log.Info("read model rebuilt", "applied", stats.Applied, "skipped", stats.Skipped, "cursor", cursor.Position)
			c := consumer.New(source, model,
				consumer.WithCursor(cursor),
				consumer.WithPollInterval(cfg.PSEE.PollInterval()),
				consumer.WithFetchTimeout(cfg.PSEE.FetchTimeout),
				consumer.WithLogger(log),
				consumer.WithMetrics(consumer.NewMetrics()),
			)
			return c.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// auditBackend is the primary audit store together with the transactor that
// makes one evaluation's trail atomic and the reader used for review.
type auditBackend struct {
	store  adapter.AuditStore
	tx     adapter.Transactor
	reader audit.Reader
}

func auditStore(cfg config.Server, deps *infra) (auditBackend, error) {
	switch cfg.AuditStore {
	case config.AuditPostgres:
		if deps.db == nil {
			return auditBackend{}, errors.New("postgres audit backend needs MGCORE_DATABASE_URL")
		}
		store := auditpostgres.New(deps.db)
		return auditBackend{store: store, tx: tx.NewSQLTransactor(deps.db), reader: store}, nil
	case config.AuditRedis:
		if deps.redis == nil {
			return auditBackend{}, errors.New("redis audit backend needs MGCORE_REDIS_URL")
		}
		store := auditredis.New(deps.redis.Client)
		return auditBackend{store: store, tx: store, reader: store}, nil
	default:
		store := memory.NewInMemoryStore()
		return auditBackend{store: store, tx: store, reader: store}, nil
	}
}

// outboxRouter mirrors compliance events to Redis when Redis is configured
// but is not already the primary store.
func outboxRouter(cfg config.Server, deps *infra, log *slog.Logger) worker.Handler {
	router := auditconsumer.NewRouter(log, worker.LogHandler(log))
	if deps.redis != nil && cfg.AuditStore != config.AuditRedis {
		mirror := auditredis.New(deps.redis.Client, auditredis.WithPrefix("mgcore:audit:mirror"))
		router.Register(audit.CategoryCompliance, auditconsumer.NewComplianceHandler(mirror, log))
	}
	router.Register(audit.CategoryGovernance, auditconsumer.NewGovernanceHandler(log, auditconsumer.NewGovernanceMetrics()))
	return router
}

func eventSource(cfg config.Server, deps *infra, log *slog.Logger) (events.Source, func(), error) {
	switch cfg.EventSource {
	case config.SourcePostgres:
		if deps.db == nil {
			return nil, nil, errors.New("postgres event source needs MGCORE_DATABASE_URL")
		}
		return pgsource.New(deps.db, pgsource.WithBatchSize(cfg.PSEE.BatchSize)), func() {}, nil
	case config.SourceKafka:
		src, err := kafkasource.Dial(kafkasource.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, kafkasource.WithBatchSize(cfg.PSEE.BatchSize), kafkasource.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		return nil, func() {}, nil
	}
}
