// Package relay pushes committed fan-outs to channels outside the inbox: email, an SNS
// topic and an AMQP exchange. Every relay is a notification.FanoutObserver.
package relay

import (
	"context"
	"errors"
	"fmt"

	"community-notifications/internal/common/logger"
	"community-notifications/internal/notification"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

var ErrRelayFailed = errors.New("RELAY_FAILED")

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailRelay mails each rendered message to recipients that have an address on file.
type EmailRelay struct {
	client    SESService
	fromEmail string
	logger    logger.Logger
}

func NewEmailRelay(client SESService, fromEmail string, log logger.Logger) *EmailRelay {
	return &EmailRelay{
		client:    client,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"relay": "email"}),
	}
}

func (r *EmailRelay) Name() string { return "email-relay" }

// OnFanout keeps going after a failed address and reports how many were lost.
func (r *EmailRelay) OnFanout(ctx context.Context, summary notification.BatchSummary, messages []notification.RenderedMessage) error {
	var sent, failed, skipped int
	for _, m := range messages {
		if m.Email == "" {
			skipped++
			continue
		}
		if err := r.send(ctx, m); err != nil {
			failed++
			r.logger.Warn("email send failed", map[string]interface{}{
				"batchId":     summary.BatchID,
				"recipientId": m.RecipientID,
				"error":       err.Error(),
			})
			continue
		}
		sent++
	}

	r.logger.Info("email relay finished", map[string]interface{}{
		"batchId": summary.BatchID,
		"sent":    sent,
		"failed":  failed,
		"skipped": skipped,
	})

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d emails for batch %s", ErrRelayFailed, failed, sent+failed, summary.BatchID)
	}
	return nil
}

func (r *EmailRelay) send(ctx context.Context, m notification.RenderedMessage) error {
	_, err := r.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{m.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(m.Title)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(m.Body)},
			},
		},
		Source: aws.String(r.fromEmail),
	})
	return err
}
