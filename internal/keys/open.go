package keys

import (
	"context"
	"log/slog"
)

// Open selects the relational backend when databaseURL is set and
// reachable at startup, falling back to the file backend (rooted at
// dataDir) otherwise. Both backends satisfy Repository.
func Open(ctx context.Context, databaseURL, dataDir string, log *slog.Logger) (Repository, error) {
	if databaseURL != "" {
		store, err := NewPGStore(ctx, databaseURL)
		if err == nil {
			return store, nil
		}
		log.Warn("relational key store unavailable, falling back to file backend", "error", err)
	}
	return NewFileStore(dataDir)
}
