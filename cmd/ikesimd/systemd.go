package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// sdNotify sends state (READY=1, STOPPING=1, ...) to systemd. Outside a
// Type=notify unit nothing is sent.
func sdNotify(logger *slog.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		logger.Warn("sd_notify failed", slog.String("state", state), slog.String("error", err.Error()))
	case sent:
		logger.Debug("sd_notify sent", slog.String("state", state))
	}
}

// keepAlive pings the systemd watchdog at half of WatchdogSec until ctx
// ends. It returns at once when no watchdog is configured.
func keepAlive(ctx context.Context, logger *slog.Logger) {
	timeout, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("systemd watchdog check failed", slog.String("error", err.Error()))
		return
	}
	if timeout == 0 {
		return
	}

	every := timeout / 2
	logger.Info("systemd watchdog active", slog.Duration("timeout", timeout), slog.Duration("every", every))

	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sdNotify(logger, daemon.SdNotifyWatchdog)
		}
	}
}
