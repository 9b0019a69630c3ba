package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"project0/internal/middleware"
	"project0/internal/notifications"
)

// realtimePublisher pushes service events to a user's browser tabs. With
// Redis the event goes through the user channel so every instance sees it;
// without Redis only the local hub is reached.
type realtimePublisher struct {
	hub      *notifications.Hub
	notifier *notifications.Notifier
}

func (p *realtimePublisher) Notify(ctx context.Context, userID uint, ev notifications.Event) error {
	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, userID, ev); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish event",
				slog.String("type", ev.Type),
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()))
			return err
		}
		return nil
	}

	if p.hub == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	p.hub.Broadcast(userID, string(payload))
	return nil
}
