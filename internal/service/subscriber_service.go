package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// SubscriberService manages newsletter subscriptions
type SubscriberService struct {
	subscribers SubscriberRepository
	logger      *zap.Logger
}

func NewSubscriberService(subscribers SubscriberRepository) *SubscriberService {
	return &SubscriberService{subscribers: subscribers, logger: util.GetLogger()}
}

// Subscribe adds an email to the newsletter
func (s *SubscriberService) Subscribe(ctx context.Context, email string) (*models.Subscriber, error) {
	ctx, span := util.StartSpan(ctx, "SubscriberService.Subscribe")
	defer span.End()

	email = normalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, invalidRequest("A valid email is required")
	}

	sub := &models.Subscriber{Email: email}
	if err := s.subscribers.CreateSubscriber(ctx, sub); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadySubscribed
		}
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	s.logger.Info("Newsletter subscription", zap.String("subscriber_id", sub.ID.Hex()))
	return sub, nil
}
