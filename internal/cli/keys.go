package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/apresai/ttsgateway/internal/config"
	"github.com/apresai/ttsgateway/internal/keys"
)

var (
	flagKeyName      string
	flagKeyAdmin     bool
	flagKeyRequests  int
	flagKeyWindowMs  int64
	flagKeyExpiresIn string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API key and print its plaintext once",
	RunE:  runKeysCreate,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE:  runKeysList,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke [id]",
	Short: "Deactivate an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRevoke,
}

func init() {
	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd)
	keysCreateCmd.Flags().StringVar(&flagKeyName, "name", "", "Human-readable key label")
	keysCreateCmd.Flags().BoolVar(&flagKeyAdmin, "admin", false, "Grant admin privileges")
	keysCreateCmd.Flags().IntVar(&flagKeyRequests, "rate-limit-requests", 60, "Requests allowed per window")
	keysCreateCmd.Flags().Int64Var(&flagKeyWindowMs, "rate-limit-window-ms", 60_000, "Rate-limit window in milliseconds")
	keysCreateCmd.Flags().StringVar(&flagKeyExpiresIn, "expires-in", "", "Optional expiry duration, e.g. 720h")
}

func openRepo(ctx context.Context) (keys.Repository, error) {
	cfg := config.FromEnv()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return keys.Open(ctx, cfg.DatabaseURL, cfg.DataDir, log)
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	if flagKeyName == "" {
		return fmt.Errorf("--name is required")
	}
	repo, err := openRepo(cmd.Context())
	if err != nil {
		return err
	}
	defer repo.Close()

	var expiresAt *time.Time
	if flagKeyExpiresIn != "" {
		d, err := time.ParseDuration(flagKeyExpiresIn)
		if err != nil {
			return fmt.Errorf("invalid --expires-in: %w", err)
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}

	plaintext, rec, err := repo.Create(cmd.Context(), flagKeyName, flagKeyAdmin, true,
		keys.RateLimitPolicy{Requests: flagKeyRequests, WindowMs: flagKeyWindowMs}, expiresAt, nil)
	if err != nil {
		return fmt.Errorf("create key: %w", err)
	}

	fmt.Printf("id:       %s\n", rec.ID)
	fmt.Printf("api key:  %s\n", plaintext)
	fmt.Printf("admin:    %v\n", rec.IsAdmin)
	fmt.Println("\nThis key is shown once and is not recoverable.")
	return nil
}

func runKeysList(cmd *cobra.Command, args []string) error {
	repo, err := openRepo(cmd.Context())
	if err != nil {
		return err
	}
	defer repo.Close()

	records, err := repo.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	fmt.Printf("%-28s %-24s %-8s %-7s %s\n", "ID", "NAME", "ADMIN", "ACTIVE", "SUFFIX")
	fmt.Println(strings.Repeat("-", 80))
	for _, r := range records {
		fmt.Printf("%-28s %-24s %-8v %-7v ...%s\n", r.ID, r.Name, r.IsAdmin, r.Active, r.Suffix)
	}
	return nil
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	repo, err := openRepo(cmd.Context())
	if err != nil {
		return err
	}
	defer repo.Close()

	active := false
	if _, err := repo.Update(cmd.Context(), args[0], keys.Patch{Active: &active}); err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}
	fmt.Printf("key %s revoked\n", args[0])
	return nil
}
