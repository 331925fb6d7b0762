// Package notify delivers provider notifications produced by signal
// prioritization.
package notify

import (
	"context"
	"time"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// Notifier tells a provider that a signal concerns it.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n models.ProviderNotification, sig *models.Signal) error
}

// Message is the payload handed to a provider.
type Message struct {
	NotificationID string         `json:"notification_id"`
	ProviderID     string         `json:"provider_id"`
	Attempt        int            `json:"attempt"`
	SentAt         time.Time      `json:"sent_at"`
	Signal         *models.Signal `json:"signal,omitempty"`
}

func newMessage(n models.ProviderNotification, sig *models.Signal) Message {
	return Message{
		NotificationID: n.ID,
		ProviderID:     n.ProviderID,
		Attempt:        n.Attempts,
		SentAt:         time.Now().UTC(),
		Signal:         sig,
	}
}
