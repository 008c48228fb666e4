// Command vaultdesk serves a local dashboard for one leveraged vault:
// balances and limits, live operation previews and transaction
// submission.
//
// Usage:
//
//	vaultdesk --config config.yaml
//	vaultdesk --setup
//
// Required environment variables:
//
//	VAULTDESK_PRIVATE_KEY: hex private key of the operating account
package main

import (
	"context"
	"flag"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ltvlabs/vaultdesk/config"
	"github.com/ltvlabs/vaultdesk/internal/chain"
	"github.com/ltvlabs/vaultdesk/internal/clients/backend"
	"github.com/ltvlabs/vaultdesk/internal/domain"
	"github.com/ltvlabs/vaultdesk/internal/services/gate"
	"github.com/ltvlabs/vaultdesk/internal/services/maxcalc"
	"github.com/ltvlabs/vaultdesk/internal/services/orchestrator"
	"github.com/ltvlabs/vaultdesk/internal/services/preview"
	"github.com/ltvlabs/vaultdesk/internal/services/stats"
	"github.com/ltvlabs/vaultdesk/internal/services/tracker"
	"github.com/ltvlabs/vaultdesk/internal/setup"
	"github.com/ltvlabs/vaultdesk/internal/web"
	"github.com/ltvlabs/vaultdesk/pkg/poller"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	runSetup := flag.Bool("setup", false, "run the interactive configuration wizard")
	networkName := flag.String("network", "", "network name from config (default: first)")
	flag.Parse()

	if *runSetup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		*configPath = "config.gen.yaml"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, *networkName, logger); err != nil {
		logger.Fatal("vaultdesk stopped", zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "incorrect log level %q", level)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func run(cfg *config.Config, networkName string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	network, err := selectNetwork(cfg, networkName)
	if err != nil {
		return err
	}
	vaultCfg := network.Vaults[0]

	signer, err := orchestrator.NewLocalSigner(os.Getenv("VAULTDESK_PRIVATE_KEY"))
	if err != nil {
		return errors.Wrap(err, "VAULTDESK_PRIVATE_KEY")
	}
	user := signer.Address()

	client, err := ethclient.DialContext(ctx, network.RPCURL)
	if err != nil {
		return errors.Wrapf(err, "dial %s", network.RPCURL)
	}
	defer client.Close()

	snap, err := chain.LoadSnapshot(ctx, client, vaultCfg.Address, overridesFrom(vaultCfg))
	if err != nil {
		return errors.Wrap(err, "load vault snapshot")
	}
	logger.Info("vault loaded",
		zap.String("address", snap.Address.Hex()),
		zap.String("shares", snap.SharesSymbol),
		zap.String("borrow", snap.BorrowTokenSymbol),
		zap.String("collateral", snap.CollateralTokenSymbol))

	vault := chain.NewVault(client, snap.Address)
	borrowToken := chain.NewERC20(client, snap.BorrowToken)
	collateralToken := chain.NewERC20(client, snap.CollateralToken)
	api := backend.New(network.BackendURL)

	sched := poller.New(
		poller.WithInitialDelay(cfg.PollInterval),
		poller.WithMaxDelay(cfg.PollMaxInterval),
	)
	track := tracker.New(logger.Named("tracker"), vault, borrowToken, collateralToken, client, user, sched)

	calc := maxcalc.New(maxcalc.Params{
		GasReserve:                network.GasReserve,
		BorrowIsWrappedNative:     snap.BorrowToken == network.WrappedNative,
		CollateralIsWrappedNative: snap.CollateralToken == network.WrappedNative,
		DebtPrecisionCorrection:   vaultCfg.DebtPrecisionCorrection,
	}, vault)

	var flash preview.FlashPreviewer
	if vaultCfg.FlashLoanHelper != (common.Address{}) {
		flash = chain.NewFlashLoanHelper(client, vaultCfg.FlashLoanHelper)
	}
	previews := preview.NewEngine(logger.Named("preview"), vault, flash, snap)
	defer previews.Close()

	journal, err := orchestrator.NewJournal(cfg.JournalDir)
	if err != nil {
		return errors.Wrap(err, "open tx journal")
	}
	defer journal.Close()
	for _, rec := range journal.Pending() {
		logger.Warn("unsettled transaction intent from previous run",
			zap.String("id", rec.ID),
			zap.String("action", string(rec.Action)),
			zap.String("tx", rec.TxHash))
	}

	orch := orchestrator.New(logger.Named("orchestrator"), client, signer, network.ChainID,
		snap.Address, vaultCfg.FlashLoanHelper, vault, borrowToken, journal, track, api)

	var whitelist gate.WhitelistChecker = api
	if snap.WhitelistRegistry != nil {
		registry := chain.NewWhitelistRegistry(client, *snap.WhitelistRegistry)
		whitelist = registryChecker{registry}
		activateWhitelist(ctx, logger, cfg, orch, registry, snap, user)
	}
	access := gate.New(logger.Named("gate"), api, whitelist)

	var price stats.PriceReader
	if network.PriceFeed != (common.Address{}) {
		price = chain.NewPriceFeed(client, network.PriceFeed)
	}
	figures := stats.New(price, vault, api, snap.Address, user, snap.BorrowTokenDecimals)
	logStartupFigures(ctx, logger, vault, figures)

	server := web.NewServer(logger.Named("web"), cfg.ListenAddr, user, snap,
		track, previews, orch, access, calc,
		web.WithFigures(figures),
		web.WithMinRebalance(minRebalancer{calc: calc, vault: vault}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return track.Run(gctx) })
	g.Go(func() error { return server.Start(gctx) })

	logger.Info("dashboard started", zap.String("addr", cfg.ListenAddr), zap.String("user", user.Hex()))
	return g.Wait()
}

func selectNetwork(cfg *config.Config, name string) (config.Network, error) {
	if name == "" {
		return cfg.Networks[0], nil
	}
	for _, n := range cfg.Networks {
		if n.Name == name {
			return n, nil
		}
	}
	return config.Network{}, errors.Errorf("network %q is not configured", name)
}

func overridesFrom(v config.Vault) chain.SnapshotOverrides {
	ov := chain.SnapshotOverrides{
		SharesSymbol:          v.SharesSymbol,
		BorrowTokenSymbol:     v.BorrowSymbol,
		CollateralTokenSymbol: v.CollateralSymbol,
	}
	if v.SharesDecimals > 0 {
		d := v.SharesDecimals
		ov.SharesDecimals = &d
	}
	if v.BorrowDecimals > 0 {
		d := v.BorrowDecimals
		ov.BorrowTokenDecimals = &d
	}
	if v.CollateralDecimals > 0 {
		d := v.CollateralDecimals
		ov.CollateralTokenDecimals = &d
	}
	return ov
}

// minRebalancer binds the calculator's min-rebalance probe to the vault.
type minRebalancer struct {
	calc  *maxcalc.Calculator
	vault *chain.Vault
}

func (m minRebalancer) MinRebalance(ctx context.Context) (*big.Int, bool, error) {
	return m.calc.MinRebalance(ctx, m.vault)
}

// registryChecker adapts the on-chain registry to the gate interface.
type registryChecker struct {
	registry *chain.WhitelistRegistry
}

func (r registryChecker) IsWhitelisted(ctx context.Context, user common.Address) (bool, error) {
	return r.registry.IsAddressWhitelisted(ctx, user)
}

// activateWhitelist submits the stored activation signature when the
// vault enforces a whitelist the user is not yet on. A signature that
// was already consumed is only logged.
func activateWhitelist(ctx context.Context, logger *zap.Logger, cfg *config.Config,
	orch *orchestrator.Orchestrator, registry *chain.WhitelistRegistry,
	snap domain.VaultSnapshot, user common.Address) {

	listed, err := registry.IsAddressWhitelisted(ctx, user)
	if err != nil {
		logger.Warn("whitelist membership check failed", zap.Error(err))
		return
	}
	if listed {
		return
	}

	stored, ok := cfg.SignatureFor(snap.Address, user)
	if !ok {
		logger.Warn("not whitelisted and no activation signature configured")
		return
	}

	err = orch.ActivateWhitelist(ctx, registry.Address(), domain.Signature{
		Vault: stored.Vault,
		User:  stored.User,
		V:     stored.V,
		R:     stored.R,
		S:     stored.S,
	})
	switch {
	case err == nil:
		logger.Info("whitelist activated")
	case errors.Is(err, orchestrator.ErrSignatureAlreadyUsed):
		logger.Info("whitelist signature already consumed")
	default:
		logger.Warn("whitelist activation failed", zap.Error(err))
	}
}

// logStartupFigures reads the display metrics once so misconfigured
// feeds or backends surface immediately.
func logStartupFigures(ctx context.Context, logger *zap.Logger, vault *chain.Vault, svc *stats.Service) {
	total, err := vault.TotalAssets(ctx)
	if err != nil {
		logger.Warn("total assets read failed", zap.Error(err))
		return
	}
	figures, err := svc.Collect(ctx, total)
	if err != nil {
		logger.Warn("startup figures unavailable", zap.Error(err))
		return
	}
	logger.Info("vault figures",
		zap.String("total_assets_usd", figures.TotalAssetsUSD.StringFixed(2)),
		zap.String("leverage", figures.Leverage.StringFixed(2)),
		zap.String("apy_30d_percent", figures.APY30d.StringFixed(2)),
		zap.String("apy_7d_percent", figures.APY7d.StringFixed(2)),
		zap.String("points_rate", figures.PointsRate.String()),
		zap.String("user_points", figures.UserPoints.String()))
}
