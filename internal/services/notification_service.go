package services

import (
	"context"
	"fmt"
	"time"

	"poolmate/internal/models"
	"poolmate/internal/utils"
	"poolmate/pkg/logger"
	"poolmate/pkg/sms"
)

// Notifier tells members about changes they did not make themselves.
// Implementations log failures and never return them.
type Notifier interface {
	NotifyMemberRemoved(ctx context.Context, user *models.User, ride *models.Ride)
	NotifyRideCancelled(ctx context.Context, users []*models.User, ride *models.Ride)
}

type smsNotifier struct {
	provider    sms.SMSProvider
	countryCode string
	logger      *logger.Logger
}

func NewSMSNotifier(provider sms.SMSProvider, countryCode string, log *logger.Logger) Notifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &smsNotifier{
		provider:    provider,
		countryCode: countryCode,
		logger:      log.WithField("component", "notifier"),
	}
}

func (n *smsNotifier) NotifyMemberRemoved(ctx context.Context, user *models.User, ride *models.Ride) {
	if user == nil || user.Phone == "" {
		return
	}

	to := utils.FormatPhone(user.Phone, n.countryCode)
	if !utils.IsValidPhone(to) {
		n.logger.WithUserID(user.ID).Warn("Skipping removal notice, phone is not a valid E.164 number")
		return
	}

	msg := fmt.Sprintf("%s: you were removed from the ride %s. Find another ride in the app.",
		utils.AppName, describeRide(ride))

	resp, err := n.provider.SendSMS(ctx, &sms.SMSRequest{
		To:      to,
		Message: msg,
		Type:    "transactional",
	})
	if err != nil {
		n.logger.WithError(err).WithUserID(user.ID).WithRideID(ride.ID).Warn("Failed to notify removed member")
		return
	}

	n.logger.WithUserID(user.ID).WithField("message_id", resp.MessageID).Debug("Removed member notified")
}

func (n *smsNotifier) NotifyRideCancelled(ctx context.Context, users []*models.User, ride *models.Ride) {
	msg := fmt.Sprintf("%s: the ride %s was cancelled by its creator.", utils.AppName, describeRide(ride))

	requests := make([]*sms.SMSRequest, 0, len(users))
	for _, u := range users {
		if u == nil || u.Phone == "" {
			continue
		}
		to := utils.FormatPhone(u.Phone, n.countryCode)
		if !utils.IsValidPhone(to) {
			n.logger.WithUserID(u.ID).Warn("Skipping cancellation notice, phone is not a valid E.164 number")
			continue
		}
		requests = append(requests, &sms.SMSRequest{
			To:      to,
			Message: msg,
			Type:    "transactional",
		})
	}
	if len(requests) == 0 {
		return
	}

	responses, err := n.provider.SendBulkSMS(ctx, requests)
	if err != nil {
		n.logger.WithError(err).WithRideID(ride.ID).Warn("Failed to notify members of cancelled ride")
		return
	}

	failed := 0
	for _, r := range responses {
		if r != nil && r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		n.logger.WithRideID(ride.ID).WithField("failed", failed).Warn("Some cancellation messages were not sent")
	}
}

func describeRide(ride *models.Ride) string {
	return fmt.Sprintf("from %s to %s on %s",
		ride.Source.Name, ride.Destination.Name, ride.RideDate.Format("02 Jan 2006 15:04"))
}

type nopNotifier struct{}

func (nopNotifier) NotifyMemberRemoved(context.Context, *models.User, *models.Ride) {}

func (nopNotifier) NotifyRideCancelled(context.Context, []*models.User, *models.Ride) {}

// notifyTimeout bounds background notification delivery.
const notifyTimeout = 30 * time.Second
