package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"conference-webapp/auth"
	"conference-webapp/config"
	"conference-webapp/model"
	"conference-webapp/repository"
)

// PasswordEnv names the variable useradd reads the new password from, so it
// never appears in the process list.
const PasswordEnv = "NEW_USER_PASSWORD"

// NewUserAddCmd creates a user directly in the store. It is the way to
// create the first admin.
func NewUserAddCmd() *cobra.Command {
	var (
		user  model.User
		admin bool
	)

	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create a user account",
		Long: `Create a user account directly in the configured store. The password
is read from ` + PasswordEnv + `. Use --admin to grant the admin role.
Only the store settings and PASSWORD_PEPPER are read from the environment.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := config.GetSecret(PasswordEnv)
			if err != nil || password == "" {
				return errors.New(PasswordEnv + " must hold the new user's password")
			}
			cfg, err := config.LoadStore()
			if err != nil {
				return err
			}
			created, err := addUser(cmd.Context(), cfg, user, password, admin)
			if err != nil {
				return err
			}
			cmd.Printf("created user %s (%s)\n", created.Username, created.Id.Hex())
			return nil
		},
	}

	cmd.Flags().StringVar(&user.Username, "username", "", "username (required)")
	cmd.Flags().StringVar(&user.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&user.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&user.CompanyName, "company", "", "company name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func addUser(ctx context.Context, cfg *config.Store, user model.User, password string, admin bool) (*model.User, error) {
	hasher, err := auth.NewHasher(cfg.PasswordPepper)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := openStore(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeStore(context.Background()) }()

	user.PasswordHash = hasher.Hash(password)
	user.Roles = model.RolesAtSignup(admin)
	return repository.New(store).CreateUser(ctx, user)
}

// NewHashPasswordCmd prints the digest stored for a password, honouring
// PASSWORD_PEPPER.
func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print the stored digest of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pepper, _ := config.GetSecret("PASSWORD_PEPPER")
			hasher, err := auth.NewHasher(pepper)
			if err != nil {
				return fmt.Errorf("PASSWORD_PEPPER: %w", err)
			}
			cmd.Println(hasher.Hash(args[0]))
			return nil
		},
	}
}
