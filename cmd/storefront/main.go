// cmd/storefront/main.go
//
// This is the entry point for the storefront terminal client.
//
// Flow:
// 1. Resolve the project directory and create .storefront/ if missing
// 2. Load config.yaml (plus STOREFRONT_* overrides) and open the logs
// 3. Wire the local store, API client and engines into the TUI

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kingrea/storefront/internal/account"
	"github.com/kingrea/storefront/internal/api"
	"github.com/kingrea/storefront/internal/cart"
	"github.com/kingrea/storefront/internal/catalog"
	"github.com/kingrea/storefront/internal/changefeed"
	"github.com/kingrea/storefront/internal/config"
	"github.com/kingrea/storefront/internal/favorites"
	"github.com/kingrea/storefront/internal/logbook"
	"github.com/kingrea/storefront/internal/logging"
	"github.com/kingrea/storefront/internal/membership"
	"github.com/kingrea/storefront/internal/orders"
	"github.com/kingrea/storefront/internal/store"
	"github.com/kingrea/storefront/internal/tui"
)

type options struct {
	dir       string
	ephemeral bool
	apiURL    string
	policy    string
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("storefront", pflag.ContinueOnError)
	fs.StringVar(&opts.dir, "dir", "", "directory that holds .storefront/ (default: current directory)")
	fs.BoolVar(&opts.ephemeral, "ephemeral", false, "keep cart, favorites and login in memory only")
	fs.StringVar(&opts.apiURL, "api", "", "override the API base URL from config.yaml")
	fs.StringVar(&opts.policy, "duplicate-policy", "", "save the add-again behavior to config.yaml (reject or increment)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return options{}, fmt.Errorf("getting working directory: %w", err)
		}
		opts.dir = cwd
	}
	dir, err := filepath.Abs(opts.dir)
	if err != nil {
		return options{}, fmt.Errorf("resolving %s: %w", opts.dir, err)
	}
	opts.dir = dir
	return opts, nil
}

func run(opts options) error {
	if err := config.InitStoreDir(opts.dir); err != nil {
		return fmt.Errorf("initializing .storefront directory: %w", err)
	}
	cfg, err := config.NewConfig(opts.dir)
	if err != nil {
		return err
	}
	if opts.policy != "" {
		if err := cfg.SetDuplicatePolicy(opts.policy); err != nil {
			return err
		}
	}
	if opts.apiURL != "" {
		cfg.Project.API.BaseURL = strings.TrimRight(strings.TrimSpace(opts.apiURL), "/")
	}

	logger, err := logging.New(cfg.LogPath(), cfg.Project.Logging.Level)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer logger.Close()

	book, err := logbook.New(cfg.ActivityLogPath())
	if err != nil {
		return fmt.Errorf("opening activity log: %w", err)
	}

	s, err := openStore(cfg, opts.ephemeral, logger.Named("store"))
	if err != nil {
		return err
	}

	policy, err := cart.ParseDuplicatePolicy(cfg.DuplicatePolicy())
	if err != nil {
		return err
	}
	changes := changefeed.NewBus(changefeed.WithLogger(logger.Named("changefeed")))
	cartOpts := []cart.Option{
		cart.WithLogger(logger.Named("cart")),
		cart.WithJournal(book),
		cart.WithRates(cart.Rates{TaxRate: cfg.TaxRate(), DeliveryFee: cfg.DeliveryFee()}),
		cart.WithDuplicatePolicy(policy),
		cart.WithChanges(changes),
	}
	var history tui.OrderHistory
	if !opts.ephemeral {
		archive, err := orders.NewArchive(cfg.OrdersDir(), orders.WithLogger(logger.Named("orders")))
		if err != nil {
			return err
		}
		cartOpts = append(cartOpts, cart.WithArchive(archive))
		history = archive
	}

	client := api.New(cfg.Project.API.BaseURL, cfg.Project.API.Timeout, api.WithLogger(logger.Named("api")))
	cartEngine := cart.NewEngine(s, cartOpts...)
	favEngine := favorites.NewEngine(s,
		favorites.WithLogger(logger.Named("favorites")),
		favorites.WithChanges(changes),
	)
	session := account.NewSession(client, s,
		account.WithLogger(logger.Named("account")),
		account.WithJournal(book),
		account.WithChanges(changes),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := tui.NewApp(tui.Deps{
		Catalog:    catalog.NewService(client),
		Account:    session,
		Cart:       cartEngine,
		Favorites:  favEngine,
		Membership: membership.New(cartEngine, favEngine),
		Logbook:    book,
		Logger:     logger.Named("tui"),
		Orders:     history,
		Changes:    changes,
	}, tui.WithContext(ctx))
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("storefront started",
		zap.String("project_dir", cfg.ProjectDir),
		zap.String("api", cfg.Project.API.BaseURL),
		zap.Bool("ephemeral", opts.ephemeral),
		zap.Bool("serialized_writes", s.Serialized()),
	)
	book.Info("Session opened")

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	logger.Info("storefront stopped")
	return nil
}

func openStore(cfg *config.Config, ephemeral bool, logger *zap.Logger) (*store.Store, error) {
	storeOpts := []store.Option{store.WithLogger(logger)}
	if cfg.SerializeWrites() {
		storeOpts = append(storeOpts, store.WithSerializedKeys())
	}
	if ephemeral {
		return store.New(store.NewMemoryBackend(), storeOpts...), nil
	}
	backend, err := store.NewFileBackend(cfg.StateDir())
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	return store.New(backend, storeOpts...), nil
}
