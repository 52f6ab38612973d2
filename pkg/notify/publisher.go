// Package notify publishes fire-and-forget lifecycle messages over Redis
// pub/sub for downstream collaborators (mailers, dashboards).
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/config"
)

// StatusChanged announces a single lifecycle transition of an event.
type StatusChanged struct {
	EventID    string    `json:"event_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RegistrationChanged announces a registration create or cancel.
type RegistrationChanged struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	ParticipantID  string    `json:"participant_id"`
	Action         string    `json:"action"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher fans lifecycle messages out to Redis channels.
type Publisher struct {
	client              *redis.Client
	statusChannel       string
	registrationChannel string
}

// NewPublisher constructs a Publisher using the configured channel names.
func NewPublisher(client *redis.Client, cfg config.NotifyConfig) *Publisher {
	statusChannel := cfg.StatusChannel
	if statusChannel == "" {
		statusChannel = "events.status"
	}
	registrationChannel := cfg.RegistrationChannel
	if registrationChannel == "" {
		registrationChannel = "events.registrations"
	}
	return &Publisher{client: client, statusChannel: statusChannel, registrationChannel: registrationChannel}
}

// PublishStatusChanged emits one message per applied transition.
func (p *Publisher) PublishStatusChanged(ctx context.Context, msg StatusChanged) error {
	return p.publish(ctx, p.statusChannel, msg)
}

// PublishRegistrationChanged emits a registration lifecycle message.
func (p *Publisher) PublishRegistrationChanged(ctx context.Context, msg RegistrationChanged) error {
	return p.publish(ctx, p.registrationChannel, msg)
}

func (p *Publisher) publish(ctx context.Context, channel string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.client.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}
