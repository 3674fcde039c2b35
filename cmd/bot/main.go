// Package main is the entry point for the channel points bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Finalway1606/kranikbot-api/internal/announce"
	"github.com/Finalway1606/kranikbot-api/internal/backup"
	"github.com/Finalway1606/kranikbot-api/internal/chat"
	"github.com/Finalway1606/kranikbot-api/internal/config"
	"github.com/Finalway1606/kranikbot-api/internal/handler"
	"github.com/Finalway1606/kranikbot-api/internal/pkg/lock"
	"github.com/Finalway1606/kranikbot-api/internal/publisher"
	"github.com/Finalway1606/kranikbot-api/internal/scheduler"
	"github.com/Finalway1606/kranikbot-api/internal/service"
	"github.com/Finalway1606/kranikbot-api/internal/store"
	"github.com/Finalway1606/kranikbot-api/internal/store/pgstore"
	"github.com/Finalway1606/kranikbot-api/internal/store/sqlitestore"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	guard := lock.New(cfg.Lock.Timeout)

	// Select the storage backend. The file-backed default gets snapshot
	// protection; PostgreSQL deployments rely on server-side backups.
	var (
		accounts  store.AccountStore
		games     store.GameStore
		purchases store.PurchaseStore
		snapshots service.Snapshotter = service.NopSnapshotter{}
		closeDB   func()
	)
	switch cfg.Database.Driver {
	case "sqlite", "":
		db, err := sqlitestore.Open(cfg.Database.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}
		closeDB = func() { db.Close() }
		if err := sqlitestore.MigrateLedger(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to run ledger migrations")
		}
		if err := sqlitestore.MigrateShop(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to run shop migrations")
		}

		bg := backup.New(cfg.Database.Path, cfg.Backup.Dir, cfg.Backup.Keep).
			WithCheckpoint(func() error { return sqlitestore.Checkpoint(db) })
		if _, err := bg.CheckIntegrity(); err != nil {
			log.Error().Err(err).Msg("Backup integrity check failed")
		}
		snapshots = bg

		accounts = sqlitestore.NewAccountStore(db)
		games = sqlitestore.NewGameStore(db)
		purchases = sqlitestore.NewPurchaseStore(db)

	case "postgres":
		pool, err := pgstore.NewPool(ctx, &pgstore.Config{
			Host:           cfg.Database.Postgres.Host,
			Port:           cfg.Database.Postgres.Port,
			User:           cfg.Database.Postgres.User,
			Password:       cfg.Database.Postgres.Password,
			Name:           cfg.Database.Postgres.Name,
			PoolSize:       cfg.Database.Postgres.PoolSize,
			ConnectTimeout: cfg.Database.Postgres.ConnectTimeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		closeDB = pool.Close
		if err := pgstore.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}

		accounts = pgstore.NewAccountStore(pool)
		games = pgstore.NewGameStore(pool)
		purchases = pgstore.NewPurchaseStore(pool)

	default:
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("Unknown database driver")
	}
	defer closeDB()

	// Initialize services
	ledger := service.NewLedgerService(accounts, games, guard, snapshots)
	shop := service.NewShopService(accounts, purchases, guard, snapshots)

	// Initialize the announcement pipeline and establish fingerprint
	// baselines so startup never emits publications.
	sink := announce.NewWebhook(cfg.Announce.WebhookURL)
	pub := publisher.New(sink)
	if view, err := publisher.BuildLeaderboardView(ctx, ledger, cfg.Leaderboard.Excluded); err != nil {
		log.Error().Err(err).Msg("Failed to build initial leaderboard view")
	} else if err := pub.MarkSynced(view); err != nil {
		log.Error().Err(err).Msg("Failed to record leaderboard baseline")
	}
	if err := pub.MarkSynced(publisher.BuildShopView()); err != nil {
		log.Error().Err(err).Msg("Failed to record shop baseline")
	}

	client := chat.NewClient(chat.Config{
		Server:      cfg.Chat.Server,
		Nick:        cfg.Chat.Nick,
		Token:       cfg.Chat.Token,
		Channel:     cfg.Chat.Channel,
		BonusBadges: cfg.Chat.BonusBadges,
	})

	router := handler.NewRouter(ledger, shop, pub, client, handler.Config{
		Owner:           cfg.Chat.Owner,
		Excluded:        cfg.Leaderboard.Excluded,
		LeaderboardSize: cfg.Leaderboard.Size,
	})

	// Periodic maintenance
	sched := scheduler.New()
	sched.Add("reward_sweep", cfg.Sweep.Interval, func(ctx context.Context) error {
		return shop.SweepExpired(ctx)
	})
	sched.Add("announce_sync", cfg.Announce.Interval, func(ctx context.Context) error {
		view, err := publisher.BuildLeaderboardView(ctx, ledger, cfg.Leaderboard.Excluded)
		if err != nil {
			return err
		}
		if _, err := pub.SyncIfChanged(ctx, view); err != nil {
			return err
		}
		_, err = pub.SyncIfChanged(ctx, publisher.BuildShopView())
		return err
	})
	if _, ok := snapshots.(*backup.Guard); ok {
		sched.Add("db_backup", cfg.Backup.Interval, func(ctx context.Context) error {
			return guard.With(ctx, lock.KeyLedger, func() error {
				return guard.With(ctx, lock.KeyInventory, func() error {
					return snapshots.Snapshot("scheduled")
				})
			})
		})
	}
	sched.Start(ctx)

	go func() {
		log.Info().Str("channel", cfg.Chat.Channel).Msg("Bot is starting...")
		if err := client.Run(ctx, router); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Chat client stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	sched.Wait()
	log.Info().Msg("Bot stopped gracefully")
}
