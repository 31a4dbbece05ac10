package cli

import (
	"context"
	"errors"
	"time"

	"storefront/config"
	"storefront/internal/auth"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	MongoURI      string
	Database      string
	Timeout       time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewRootCommand creates the root command for the storefront admin CLI
func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "storefrontctl",
		Short: "Administer a storefront database",
		// main prints the error once
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return util.InitLogger(cfg.Server.Env)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.MongoURI, "mongo-uri", cfg.Mongo.URI, "MongoDB connection string")
	cmd.PersistentFlags().StringVar(&opts.Database, "database", cfg.Mongo.Database, "database name")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "overall command timeout")

	redisAddr := ""
	if cfg.Redis.Enabled {
		redisAddr = cfg.Redis.Addr
	}
	cmd.PersistentFlags().StringVar(&opts.RedisAddr, "redis-addr", redisAddr, "redis address of the product cache (empty to skip)")
	cmd.PersistentFlags().StringVar(&opts.RedisPassword, "redis-password", cfg.Redis.Password, "redis password")
	cmd.PersistentFlags().IntVar(&opts.RedisDB, "redis-db", cfg.Redis.DB, "redis database")

	cmd.AddCommand(NewCreateAdminCommand(opts, cfg))
	cmd.AddCommand(NewSeedCommand(opts, cfg))

	return cmd
}

// session is an open database plus the services commands run against
type session struct {
	db      *store.Store
	users   *service.UserService
	catalog *service.CatalogService
}

func openSession(ctx context.Context, opts *RootOptions, cfg *config.Config) (*session, error) {
	if opts.MongoURI == "" {
		return nil, errors.New("--mongo-uri is required")
	}
	db, err := store.NewStore(ctx, opts.MongoURI, opts.Database)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		_ = db.Close(ctx)
		return nil, err
	}
	return &session{
		db:      db,
		users:   service.NewUserService(db, auth.NewPasswordHasher(cfg.Auth.BcryptCost)),
		catalog: service.NewCatalogService(db, nil),
	}, nil
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.db.Close(ctx)
}
