package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"community-notifications/internal/notification"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// TopicPublisher announces each committed batch on an SNS topic. Subscribers get the
// summary, not the personalized bodies.
type TopicPublisher struct {
	client   SNSService
	topicARN string
}

func NewTopicPublisher(client SNSService, topicARN string) *TopicPublisher {
	return &TopicPublisher{client: client, topicARN: topicARN}
}

func (p *TopicPublisher) Name() string { return "sns-topic" }

func (p *TopicPublisher) OnFanout(ctx context.Context, summary notification.BatchSummary, _ []notification.RenderedMessage) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", summary.BatchID, err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(summary.Title),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"ruleKind": {DataType: aws.String("String"), StringValue: aws.String(string(summary.RuleKind))},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: publish batch %s: %w", ErrRelayFailed, summary.BatchID, err)
	}
	return nil
}
