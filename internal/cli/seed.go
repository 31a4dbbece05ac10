package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"storefront/config"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SeedUser is an account in a seed file
type SeedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// SeedFile is the YAML document loaded by the seed command
type SeedFile struct {
	Users    []SeedUser       `yaml:"users"`
	Products []models.Product `yaml:"products"`
}

// SeedResult counts what a seed run created
type SeedResult struct {
	Users    int
	Products int
}

// ParseSeedFile decodes a seed document, rejecting unknown fields
func ParseSeedFile(r io.Reader) (*SeedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f SeedFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

// Seed creates the users and products in f. It stops at the first failure.
func Seed(ctx context.Context, users *service.UserService, catalog *service.CatalogService, f *SeedFile) (SeedResult, error) {
	var res SeedResult
	for _, u := range f.Users {
		if _, err := users.Create(ctx, service.UserInput{Name: u.Name, Email: u.Email, Password: u.Password, Role: u.Role}); err != nil {
			return res, fmt.Errorf("user %s: %w", u.Email, err)
		}
		res.Users++
	}
	for i := range f.Products {
		p := f.Products[i]
		if _, err := catalog.Create(ctx, &p); err != nil {
			return res, fmt.Errorf("product %s: %w", p.SKU, err)
		}
		res.Products++
	}
	return res, nil
}

// flushProductCache drops cached products so a reset catalog is not served
// stale from redis. It is a no-op when no redis address is configured.
func flushProductCache(ctx context.Context, opts *RootOptions) (int, error) {
	if opts.RedisAddr == "" {
		return 0, nil
	}
	rc, err := redisclient.NewClient(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return rc.FlushProducts(ctx)
}

type seedOptions struct {
	file  string
	reset bool
}

// NewSeedCommand creates the seed command
func NewSeedCommand(rootOpts *RootOptions, cfg *config.Config) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Load users and products from a YAML file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(opts.file)
			if err != nil {
				return err
			}
			defer fh.Close()

			f, err := ParseSeedFile(fh)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), rootOpts.Timeout)
			defer cancel()

			s, err := openSession(ctx, rootOpts, cfg)
			if err != nil {
				return err
			}
			defer s.close()

			if opts.reset {
				util.GetLogger().Warn("Dropping database before seeding", zap.String("database", rootOpts.Database))
				if err := s.db.Reset(ctx); err != nil {
					return err
				}
				if err := s.db.EnsureIndexes(ctx); err != nil {
					return err
				}
				n, err := flushProductCache(ctx, rootOpts)
				if err != nil {
					return fmt.Errorf("database reset but product cache not flushed: %w", err)
				}
				if n > 0 {
					util.GetLogger().Info("Flushed cached products", zap.Int("keys", n))
				}
			}

			res, err := Seed(ctx, s.users, s.catalog, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users and %d products\n", res.Users, res.Products)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "seed.yaml", "seed file")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "drop all collections and cached products first")

	return cmd
}
