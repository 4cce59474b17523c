package events

import (
	"context"
	"encoding/json"

	"notification-engine/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SNSPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSForwarder relays bus events to an SNS topic so badge counters outside
// this process can follow the aggregate.
type SNSForwarder struct {
	client   SNSPublisher
	topicARN string
	logger   logger.Logger
}

func NewSNSForwarder(client SNSPublisher, topicARN string, log logger.Logger) *SNSForwarder {
	return &SNSForwarder{
		client:   client,
		topicARN: topicARN,
		logger:   logger.Component(log, "sns-forwarder"),
	}
}

// Run forwards events until ctx is done or the channel closes.
func (f *SNSForwarder) Run(ctx context.Context, in <-chan AggregateChanged) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-in:
			if !ok {
				return
			}
			if err := f.Forward(ctx, e); err != nil {
				f.logger.Warn("failed to forward event", map[string]interface{}{
					"type":   e.Type,
					"userId": e.UserID,
					"error":  err,
				})
			}
		}
	}
}

func (f *SNSForwarder) Forward(ctx context.Context, e AggregateChanged) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	_, err = f.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(f.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String(string(e.Type))},
			"userId":    {DataType: aws.String("String"), StringValue: aws.String(e.UserID)},
		},
	})
	return err
}
