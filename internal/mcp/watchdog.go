package mcp

import (
	"context"
	"os"
	"time"

	"secretvet/internal/logging"
)

const parentPollInterval = 2 * time.Second

// WatchParent polls the parent process ID and invokes cancel when it
// changes. Over stdio the host owns the server process; when the host
// dies the server must not outlive it.
func WatchParent(ctx context.Context, cancel context.CancelFunc) {
	ppid := os.Getppid()
	log := logging.New("mcp")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(parentPollInterval):
				if os.Getppid() != ppid {
					log.Warn("parent process died, shutting down", "was_pid", ppid)
					cancel()
					return
				}
			}
		}
	}()
}
