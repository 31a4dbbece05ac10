package cli

import (
	"context"
	"errors"
	"fmt"

	"storefront/config"

	"github.com/spf13/cobra"
)

type createAdminOptions struct {
	name     string
	email    string
	password string
}

// NewCreateAdminCommand creates the create-admin command
func NewCreateAdminCommand(rootOpts *RootOptions, cfg *config.Config) *cobra.Command {
	opts := &createAdminOptions{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account or promote an existing user",
		Long: `Create an admin account. If a user with the email already exists it is
promoted to admin and its name and password are replaced.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.email == "" || opts.password == "" {
				return errors.New("--email and --password are required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), rootOpts.Timeout)
			defer cancel()

			s, err := openSession(ctx, rootOpts, cfg)
			if err != nil {
				return err
			}
			defer s.close()

			user, err := s.users.EnsureAdmin(ctx, opts.name, opts.email, opts.password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (%s) ready\n", user.Email, user.ID.Hex())
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "Admin", "display name")
	cmd.Flags().StringVar(&opts.email, "email", "", "admin email")
	cmd.Flags().StringVar(&opts.password, "password", "", "admin password")

	return cmd
}
