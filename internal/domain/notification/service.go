package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Pusher delivers a notification to live connections. The hub implements it.
type Pusher interface {
	SendToUserJSON(userID uuid.UUID, payload any) error
}

// Service persists notifications and pushes them to connected clients. Every
// delivery path is fire-and-forget: a notification failure never propagates
// into the workflow that produced the event.
type Service struct {
	repo       Repository
	pusher     Pusher
	operatorID uuid.UUID
}

// NewService creates the notification service. operatorID receives ledger
// reconciliation alerts; uuid.Nil disables them (logged only).
func NewService(repo Repository, pusher Pusher, operatorID uuid.UUID) *Service {
	return &Service{repo: repo, pusher: pusher, operatorID: operatorID}
}

// Notify records an event for recipient and pushes it live. Satisfies the
// Notifier contract of the workflow packages.
func (s *Service) Notify(ctx context.Context, recipient uuid.UUID, event string, payload map[string]interface{}) {
	s.deliver(ctx, recipient, Type(event), payload)
}

// CompensationFailed escalates an uncompensated workflow step to the operator
// inbox. This is the saga alerter: the log line alone is not enough when a
// balance may be left un-reconciled.
func (s *Service) CompensationFailed(ctx context.Context, workflow, step string, err error) {
	log.Error().
		Str("workflow", workflow).
		Str("step", step).
		Err(err).
		Msg("compensation failed, escalating to operator")

	if s.operatorID == uuid.Nil {
		return
	}
	s.deliver(ctx, s.operatorID, TypeLedgerReconciliation, map[string]interface{}{
		"workflow": workflow,
		"step":     step,
		"error":    err.Error(),
	})
}

func (s *Service) deliver(ctx context.Context, recipient uuid.UUID, notifType Type, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("type", string(notifType)).Msg("failed to marshal notification payload")
		data = nil
	}

	n := &Notification{
		ID:          uuid.New(),
		RecipientID: recipient,
		Type:        notifType,
		Title:       titleFor(notifType),
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, n); err != nil {
		log.Error().
			Err(err).
			Str("recipient_id", recipient.String()).
			Str("type", string(notifType)).
			Msg("failed to persist notification")
		return
	}

	if s.pusher != nil {
		unread, _ := s.repo.CountUnread(ctx, recipient)
		pushErr := s.pusher.SendToUserJSON(recipient, map[string]interface{}{
			"type": "notification:new",
			"data": map[string]interface{}{
				"notification": n,
				"unread_count": unread,
			},
		})
		if pushErr != nil {
			log.Warn().Err(pushErr).Str("recipient_id", recipient.String()).Msg("realtime push failed")
		}
	}
}

func (s *Service) List(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*Notification, error) {
	return s.repo.ListByRecipient(ctx, recipientID, limit, offset)
}

func (s *Service) GetUnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, recipientID)
}

func (s *Service) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id)
}

func (s *Service) MarkAllAsRead(ctx context.Context, recipientID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, recipientID)
}
