// Command indexctl is the admin CLI for API key lifecycle management
// against the docuindex database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docuindex/engine/internal/app/services/apikeys"
	"github.com/docuindex/engine/internal/app/storage/postgres"
	"github.com/docuindex/engine/internal/config"
	"github.com/docuindex/engine/internal/platform/database"
	"github.com/docuindex/engine/pkg/logger"
)

var log = logger.NewDefault()

func main() {
	rootCmd := &cobra.Command{
		Use:   "indexctl",
		Short: "Manage docuindex API keys",
	}
	rootCmd.PersistentFlags().String("dsn", "", "PostgreSQL DSN (overrides DATABASE_URL)")

	rootCmd.AddCommand(
		newCreateKeyCmd(),
		newListKeysCmd(),
		newRevokeKeyCmd(),
		newRotateKeyCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.WithField("command", os.Args[0]).Error(err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openKeyService(cmd *cobra.Command) (*apikeys.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
		cfg.DatabaseURL = dsn
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithField("command", cmd.Name()).Error("connect to postgres: ", err)
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	store := postgres.NewAPIKeyStore(db)
	svc := apikeys.New(store, []byte(cfg.APIKeyPepper))
	return svc, func() { db.Close() }, nil
}

func newCreateKeyCmd() *cobra.Command {
	var name, prefix string
	cmd := &cobra.Command{
		Use:   "create-key",
		Short: "Issue a new API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openKeyService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			issued, err := svc.Create(context.Background(), apikeys.CreateParams{Name: name, Prefix: prefix})
			if err != nil {
				return err
			}
			log.WithField("command", "create-key").WithField("key_id", issued.Key.ID).Info("issued API key")
			fmt.Printf("id:     %s\n", issued.Key.ID)
			fmt.Printf("name:   %s\n", issued.Key.Name)
			fmt.Printf("secret: %s\n", issued.RawSecret)
			fmt.Println("store this secret now; it will not be shown again")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "human-readable name for the key")
	cmd.Flags().StringVar(&prefix, "prefix", "", "key prefix (defaults to pgv_sk_)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newListKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-keys",
		Short: "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openKeyService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			keys, err := svc.List(context.Background())
			if err != nil {
				return err
			}
			for _, k := range keys {
				status := "active"
				if k.RevokedAt != nil {
					status = "revoked"
				}
				fmt.Printf("%s\t%s\t%s\n", k.ID, k.Name, status)
			}
			return nil
		},
	}
}

func newRevokeKeyCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "revoke-key",
		Short: "Revoke an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openKeyService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.Revoke(context.Background(), id); err != nil {
				return err
			}
			log.WithField("command", "revoke-key").WithField("key_id", id).Info("revoked API key")
			fmt.Printf("revoked %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "key ID to revoke")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newRotateKeyCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Revoke an API key and issue its replacement",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openKeyService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			issued, err := svc.Rotate(context.Background(), id)
			if err != nil {
				return err
			}
			log.WithField("command", "rotate-key").WithField("old_key_id", id).WithField("new_key_id", issued.Key.ID).Info("rotated API key")
			fmt.Printf("id:     %s\n", issued.Key.ID)
			fmt.Printf("name:   %s\n", issued.Key.Name)
			fmt.Printf("secret: %s\n", issued.RawSecret)
			fmt.Println("store this secret now; it will not be shown again")
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "key ID to rotate")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
