// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/profilegate/internal/platform/constants"
)

// Dropper forgets local state for an account.
type Dropper interface {
	DropLocal(accountID string)
}

type invalidation struct {
	AccountID string `json:"account_id"`
	Origin    string `json:"origin"`
}

// Broadcaster fans invalidations out to every replica over Redis pub/sub.
type Broadcaster struct {
	client   *redis.Client
	channel  string
	instance string
	logger   *slog.Logger
}

// NewBroadcaster publishes and listens on the gate invalidation channel.
func NewBroadcaster(client *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		client:   client,
		channel:  constants.RedisChannelGateInvalidate,
		instance: uuid.NewString(),
		logger:   logger,
	}
}

// PublishInvalidation announces that accountID must be dropped everywhere.
func (broadcaster *Broadcaster) PublishInvalidation(ctx context.Context, accountID string) error {
	payload, err := json.Marshal(invalidation{AccountID: accountID, Origin: broadcaster.instance})
	if err != nil {
		return fmt.Errorf("gate_broadcast_encode_failed: %w", err)
	}
	if err := broadcaster.client.Publish(ctx, broadcaster.channel, payload).Err(); err != nil {
		return fmt.Errorf("gate_broadcast_publish_failed: %w", err)
	}
	return nil
}

/*
Listen applies invalidations published by other replicas until ctx ends.

Parameters:
  - ctx: listener lifetime
  - dropper: receives every foreign account ID
  - ready: closed once the subscription is active, may be nil

Returns:
  - error: if the subscription could not be established
*/
func (broadcaster *Broadcaster) Listen(ctx context.Context, dropper Dropper, ready chan<- struct{}) error {
	subscription := broadcaster.client.Subscribe(ctx, broadcaster.channel)
	defer subscription.Close()

	if _, err := subscription.Receive(ctx); err != nil {
		return fmt.Errorf("gate_broadcast_subscribe_failed: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	broadcaster.logger.InfoContext(ctx, "gate_broadcast_listening", slog.String("channel", broadcaster.channel))

	messages := subscription.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-messages:
			if !ok {
				return nil
			}

			var event invalidation
			if err := json.Unmarshal([]byte(message.Payload), &event); err != nil || event.AccountID == "" {
				broadcaster.logger.WarnContext(ctx, "gate_broadcast_message_malformed", slog.String("payload", message.Payload))
				continue
			}
			if event.Origin == broadcaster.instance {
				continue
			}

			dropper.DropLocal(event.AccountID)
			broadcaster.logger.DebugContext(ctx, "gate_broadcast_dropped", slog.String("account_id", event.AccountID))
		}
	}
}
