package playlist

import (
	"context"

	"github.com/StarFreedomX/ktv-casting/internal/config"
	"github.com/StarFreedomX/ktv-casting/internal/log"
	"github.com/StarFreedomX/ktv-casting/internal/roomurl"
)

// StartTransport launches the event producer matching the configured
// sync mode. WS is attempted first (within its connect budget) and
// polling takes over when the socket cannot be established; the
// synchronizer consumes the same queue either way.
func StartTransport(ctx context.Context, cfg config.Config, room roomurl.RoomRef,
	client *Client, queue *Queue, screen Screen) {
	logger := log.WithComponent("transport")

	if cfg.SyncMode == config.SyncModePolling {
		logger.Info().Msg("sync mode: polling")
		go NewPollingTransport(client, queue).Run(ctx)
		return
	}

	ws := NewWSTransport(room.WSURL(cfg.Nickname), client, queue, cfg.KeepAliveInterval)
	conn, err := ws.Connect(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("room socket connect failed")
		screen.EmitMsg("Switched to polling")
		go NewPollingTransport(client, queue).Run(ctx)
		return
	}

	logger.Info().Str("url", room.WSURL("")).Msg("room socket connected")
	go ws.Run(ctx, conn)
}
