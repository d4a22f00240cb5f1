// Command gatewayctl is an operator console that builds an in-process
// engine registry from the local configuration and renders a live
// per-provider health table for it, refreshing in place on a TTY. It does
// not contact a running gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apresai/ttsgateway/internal/config"
	"github.com/apresai/ttsgateway/internal/credstore"
	"github.com/apresai/ttsgateway/internal/keys"
	"github.com/apresai/ttsgateway/internal/pipeline"
	"github.com/apresai/ttsgateway/internal/progress"
	"github.com/apresai/ttsgateway/internal/ratelimit"
	"github.com/apresai/ttsgateway/internal/registry"
	"github.com/apresai/ttsgateway/internal/usage"
	"github.com/apresai/ttsgateway/internal/voice"
)

func main() {
	interval := flag.Duration("interval", 2*time.Second, "refresh interval")
	warm := flag.Bool("warm", false, "probe every known provider with system credentials before the first render")
	flag.Parse()

	cfg := config.FromEnv()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	credStore, err := credstore.New(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatewayctl: open credential store: %v\n", err)
		os.Exit(1)
	}
	reg := registry.New()
	resolver := voice.New(reg, nil)
	limiter := ratelimit.New()
	defer limiter.Stop()

	pipe := pipeline.New(nil, limiter, usage.New(1, nil, ""), resolver, credStore, cfg.AdminAPIKey, log)

	if *warm {
		admin := adminRecord()
		for _, provider := range resolver.Providers() {
			_, _ = pipe.ResolveProviderAdapter(ctx, provider, admin)
		}
	}

	renderer := progress.NewHealthRenderer(os.Stdout)
	defer renderer.Finish()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	render := func() {
		health := reg.ListHealth(ctx)
		snapshots := make([]progress.Snapshot, 0, len(health))
		for provider, h := range health {
			snapshots = append(snapshots, progress.Snapshot{Provider: provider, OK: h.OK, VoiceCount: h.VoiceCount, Error: h.Error})
		}
		renderer.Render(snapshots)
	}

	render()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			render()
		}
	}
}

// adminRecord builds a synthetic admin-privileged key record for warming
// every provider's adapter regardless of per-key policy, without touching
// the key repository (gatewayctl runs standalone, outside request scope).
func adminRecord() *keys.Record {
	return keys.BootstrapRecord()
}
