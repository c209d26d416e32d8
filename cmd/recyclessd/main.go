package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"recycless/config"
	"recycless/core"
	"recycless/crypto"
	"recycless/native/bank"
	modcommon "recycless/native/common"
	"recycless/observability/logging"
	"recycless/observability/otel"
	"recycless/rpc"
	"recycless/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		slog.Error("recyclessd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("RECYCLESS_ENV"))
	if env == "" {
		env = cfg.LogEnv
	}
	logger := logging.SetupWithOptions(logging.Options{
		Service: "recyclessd",
		Env:     env,
		Level:   logging.ParseLevel(cfg.LogLevel),
		File:    cfg.LogFile,
	})

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(stopCtx, otel.Config{
		ServiceName: "recyclessd",
		Environment: env,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		Headers:     otel.ParseHeaders(cfg.Tracing.Headers),
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	if !strings.EqualFold(cfg.Backend, "memory") {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := storage.Open(cfg.Backend, cfg.StatePath())
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	bankDB, err := bank.Open(cfg.Bank.Driver, cfg.BankDSN())
	if err != nil {
		return fmt.Errorf("open asset ledger: %w", err)
	}
	if err := bank.AutoMigrate(bankDB); err != nil {
		return fmt.Errorf("migrate asset ledger: %w", err)
	}
	ledger := bank.NewLedger(bankDB, bank.Options{AutoOptIn: cfg.Bank.AutoOptIn})

	account, err := cfg.ContractAddress()
	if err != nil {
		return err
	}
	if err := fundContract(stopCtx, ledger, account, cfg.Funding, logger); err != nil {
		return err
	}

	dispatcher := core.NewDispatcher(ledger, account, cfg.DispatchQueue, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dispatcher.Close(ctx); err != nil {
			logger.Warn("transfer queue not drained", slog.Any("error", err))
		}
	}()

	contract := core.NewContract(db, dispatcher, core.Options{
		Network: cfg.NetworkName,
		Pauses:  modcommon.StaticPauses{modcommon.ModuleRecycle: cfg.Paused},
		Logger:  logger,
	})
	if creator, ok, err := cfg.CreatorAddress(); err != nil {
		return err
	} else if ok {
		if err := contract.Init(stopCtx, creator); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
	}

	server := rpc.NewServer(contract, ledger, rpc.ServerConfig{
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             cfg.RateLimit.Burst,
			TrustedProxies:    append([]string{}, cfg.RateLimit.TrustedProxies...),
		},
		Logger: logger,
	})

	logger.Info("recyclessd starting",
		slog.String("network", cfg.NetworkName),
		slog.String("backend", cfg.Backend),
		slog.String("contract_account", crypto.Format(dispatcher.Account())),
		slog.String("bank_driver", cfg.Bank.Driver),
		logging.MaskField("bank_dsn", cfg.BankDSN()),
		slog.Bool("paused", cfg.Paused))

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start(cfg.RPCAddress)
	}()

	select {
	case <-stopCtx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errs:
		return err
	}
}

type fundingLedger interface {
	Balance(ctx context.Context, assetID uint64, account common.Address) (uint64, bool, error)
	Credit(ctx context.Context, assetID uint64, account common.Address, amount uint64) error
}

// fundContract tops the contract account up to each configured amount so a
// restart does not mint the funding again.
func fundContract(ctx context.Context, ledger fundingLedger, account common.Address, funding []config.Funding, logger *slog.Logger) error {
	for _, f := range funding {
		have, _, err := ledger.Balance(ctx, f.Asset, account)
		if err != nil {
			return fmt.Errorf("read funding balance for asset %d: %w", f.Asset, err)
		}
		if have >= f.Amount {
			continue
		}
		if err := ledger.Credit(ctx, f.Asset, account, f.Amount-have); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("fund asset %d: %w", f.Asset, err)
		}
		logger.Info("funded contract account",
			slog.Uint64("asset_id", f.Asset),
			slog.Uint64("amount", f.Amount-have))
	}
	return nil
}
