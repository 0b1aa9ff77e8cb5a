package main

import (
	"context"
	"log/slog"
	"time"

	"parley/server/internal/session"
	"parley/server/internal/store"
)

// RunStatsLogger logs session and store counts every interval until
// ctx is cancelled. Quiet when nothing is happening.
func RunStatsLogger(ctx context.Context, st *store.Store, sessions *session.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := sessions.Count()
			if n == 0 {
				continue
			}
			users, _ := st.UserCount()
			messages, _ := st.MessageCount()
			slog.Info("stats", "sessions", n, "users", users, "messages", messages)
		}
	}
}
