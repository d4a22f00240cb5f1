// Package cli implements the gateway's command-line entrypoint: serve,
// version, and operator key-management subcommands. Grounded on the
// teacher's cobra root/subcommand layout.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/apresai/ttsgateway/internal/config"
	"github.com/apresai/ttsgateway/internal/credstore"
	"github.com/apresai/ttsgateway/internal/httpapi"
	"github.com/apresai/ttsgateway/internal/keys"
	"github.com/apresai/ttsgateway/internal/observability"
	"github.com/apresai/ttsgateway/internal/pipeline"
	"github.com/apresai/ttsgateway/internal/ratelimit"
	"github.com/apresai/ttsgateway/internal/registry"
	"github.com/apresai/ttsgateway/internal/usage"
	"github.com/apresai/ttsgateway/internal/voice"
)

// Version is set via -ldflags at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "TTS gateway: a uniform REST/WebSocket façade over multiple speech providers",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gateway %s\n", Version)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/WebSocket gateway server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keysCmd)
}

// Execute runs the gateway CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Build wires every component New() constructs eagerly: config, AWS
// clients with OTEL instrumentation, the key repository, credential
// store, rate limiter, usage tracker, engine registry, voice resolver,
// and request pipeline. Exported so cmd/lambda can reuse it behind an
// API Gateway proxy instead of a listening http.Server.
func Build(ctx context.Context, log *slog.Logger) (*httpapi.Server, func(), error) {
	cfg := config.FromEnv()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	repo, err := keys.Open(ctx, cfg.DatabaseURL, cfg.DataDir, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open key store: %w", err)
	}

	credStore, err := credstore.New(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open credential store: %w", err)
	}
	if cfg.SecretPrefix != "" {
		credStore = credStore.WithSecretsManager(secretsmanager.NewFromConfig(awsCfg), cfg.SecretPrefix)
	}

	var ddbClient *dynamodb.Client
	if cfg.UsageDynamoDBTable != "" {
		ddbClient = dynamodb.NewFromConfig(awsCfg)
	}
	tracker := usage.New(usage.DefaultRingSize, ddbClient, cfg.UsageDynamoDBTable)

	limiter := ratelimit.New()
	reg := registry.New()
	resolver := voice.New(reg, nil)
	pipe := pipeline.New(repo, limiter, tracker, resolver, credStore, cfg.AdminAPIKey, log)

	server := httpapi.New(cfg, pipe, reg, repo, credStore, log)

	cleanup := func() {
		limiter.Stop()
		reg.Shutdown()
		_ = repo.Close()
	}
	return server, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()

	var cwCfg *observability.CloudWatchConfig
	if cfg.CloudWatchLogGroup != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(cmd.Context(), awsconfig.WithRegion(cfg.AWSRegion))
		if err == nil {
			cwCfg = &observability.CloudWatchConfig{
				Client:    cloudwatchlogs.NewFromConfig(awsCfg),
				LogGroup:  cfg.CloudWatchLogGroup,
				LogStream: "gateway-" + time.Now().UTC().Format("2006-01-02"),
			}
		}
	}
	log := observability.InitLogger(cfg.LogLevel, cwCfg)

	var tracerShutdown func(context.Context) error
	if cfg.OTLPEndpoint != "" {
		tp, err := observability.InitTracer(cmd.Context(), "ttsgateway", Version)
		if err != nil {
			log.Warn("tracer init failed", "error", err)
		} else {
			tracerShutdown = tp.Shutdown
		}
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, cleanup, err := Build(ctx, log)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		if tracerShutdown != nil {
			_ = tracerShutdown(shutdownCtx)
		}
	}()

	log.Info("gateway listening", "addr", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
