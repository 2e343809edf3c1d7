package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/emberlabs/kiln/api"
	"github.com/emberlabs/kiln/api/config"
	"github.com/emberlabs/kiln/api/handlers"
	"github.com/emberlabs/kiln/api/metrics"
	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
	pgstore "github.com/emberlabs/kiln/ledger/store/postgres"
	"github.com/emberlabs/kiln/merchant"
	"github.com/emberlabs/kiln/pool"
	"github.com/emberlabs/kiln/utils/pkg/logger"
)

// controllerID is the identity the API presents to the ledgers. Ledgers
// built here only accept calls from this identity, so all mutations go
// through the pool.
const controllerID engine.AccountID = "kiln-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", ":8080", "HTTP listen address (or set KILN_LISTEN_ADDR env var)")
	ledgersFlag := flag.StringSlice("ledgers", []string{"standard"}, "ledger names to serve (or set KILN_LEDGERS env var, comma-separated)")
	adminAccountFlag := flag.String("admin-account", "kiln-admin", "pool admin account identity")
	adminTokenFlag := flag.String("admin-token", "", "bearer token for admin endpoints, empty disables them (or set KILN_ADMIN_TOKEN env var)")
	corsOriginsFlag := flag.StringSlice("cors-origins", nil, "allowed CORS origins (or set KILN_CORS_ORIGINS env var, comma-separated)")
	subscriptionFeeFlag := flag.String("subscription-fee", "10000000", "merchant subscription fee per month, in base units")
	treasurySeedFlag := flag.String("treasury-seed", "0", "initial treasury reserve, in base units")

	flag.Parse()

	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	if envListenAddr := os.Getenv("KILN_LISTEN_ADDR"); envListenAddr != "" {
		*listenAddrFlag = envListenAddr
	}
	if envLedgers := os.Getenv("KILN_LEDGERS"); envLedgers != "" {
		*ledgersFlag = strings.Split(envLedgers, ",")
	}
	if envAdminToken := os.Getenv("KILN_ADMIN_TOKEN"); envAdminToken != "" {
		*adminTokenFlag = envAdminToken
	}
	if envCORSOrigins := os.Getenv("KILN_CORS_ORIGINS"); envCORSOrigins != "" {
		*corsOriginsFlag = strings.Split(envCORSOrigins, ",")
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("SENTRY_ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: environment,
			Release:     handlers.Version,
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	subscriptionFee, err := balance.FromDecimal(*subscriptionFeeFlag)
	if err != nil {
		return fmt.Errorf("invalid --subscription-fee: %w", err)
	}
	treasurySeed, err := balance.FromDecimal(*treasurySeedFlag)
	if err != nil {
		return fmt.Errorf("invalid --treasury-seed: %w", err)
	}

	if err := config.LoadPostgres(); err != nil {
		return fmt.Errorf("failed to load postgres: %w", err)
	}
	defer config.ClosePostgres()

	if err := config.LoadNeo4j(log); err != nil {
		return fmt.Errorf("failed to load neo4j: %w", err)
	}
	defer func() {
		if err := config.CloseNeo4j(); err != nil {
			log.Warn("failed to close neo4j", "error", err)
		}
	}()

	// Directory is optional; engines distribute referral credit only
	// when one is configured.
	var directory engine.Directory
	if config.Neo4jDirectory != nil {
		directory = config.Neo4jDirectory
	}

	p, err := pool.New(pool.Config{
		Admin:      engine.AccountID(*adminAccountFlag),
		Controller: controllerID,
		Logger:     log,
		Treasury:   pool.NewReserve(treasurySeed),
		Events:     pool.NewPostgresSink(config.PgPool),
	})
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}

	engines := make(map[string]*engine.Engine, len(*ledgersFlag))
	for _, name := range *ledgersFlag {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		eng, err := engine.New(engine.Config{
			Controller: controllerID,
			Logger:     log.With("ledger", name),
			Store:      pgstore.New(config.PgPool, name),
			Directory:  directory,
		})
		if err != nil {
			return fmt.Errorf("failed to create ledger %s: %w", name, err)
		}
		if err := p.AddLedger(engine.AccountID(*adminAccountFlag), name, eng); err != nil {
			return fmt.Errorf("failed to register ledger %s: %w", name, err)
		}
		engines[name] = eng
	}
	if len(engines) == 0 {
		return fmt.Errorf("at least one ledger is required")
	}

	merchantSvc, err := merchant.New(merchant.Config{
		SubscriptionFee: subscriptionFee,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("failed to create merchant service: %w", err)
	}

	metrics.BuildInfo.WithLabelValues(handlers.Version, handlers.Commit, handlers.Date).Set(1)

	server := api.NewServer(api.ServerConfig{
		Addr: *listenAddrFlag,
		Handlers: &handlers.Handlers{
			Log:        log,
			Pool:       p,
			Merchant:   merchantSvc,
			Engines:    engines,
			Controller: controllerID,
			Directory:  directory,
			AdminToken: *adminTokenFlag,
		},
		Logger:         log,
		AllowedOrigins: *corsOriginsFlag,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("kiln api listening", "addr", *listenAddrFlag, "ledgers", strings.Join(p.Ledgers(), ","))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
