package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
)

const sesCharset = "utf-8"

type sesAPI interface {
	SendEmailWithContext(ctx aws.Context, input *ses.SendEmailInput, opts ...request.Option) (*ses.SendEmailOutput, error)
}

// SES sends through Amazon SES. SES has no scheduled delivery; ScheduledAt is ignored.
type SES struct {
	api sesAPI
}

// NewSES builds an SES mailer using the default AWS credential chain.
func NewSES(region string) (*SES, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("ses session: %w", err)
	}
	return &SES{api: ses.New(sess)}, nil
}

func (m *SES) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	input := &ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(msg.To)},
		},
		Message: &ses.Message{
			Body: &ses.Body{},
			Subject: &ses.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String(sesCharset),
			},
		},
		Source: aws.String(msg.From),
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []*string{aws.String(msg.ReplyTo)}
	}
	if msg.Text != "" {
		input.Message.Body.Text = &ses.Content{Data: aws.String(msg.Text), Charset: aws.String(sesCharset)}
	}
	if msg.HTML != "" {
		input.Message.Body.Html = &ses.Content{Data: aws.String(msg.HTML), Charset: aws.String(sesCharset)}
	}

	out, err := m.api.SendEmailWithContext(ctx, input)
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	return aws.StringValue(out.MessageId), nil
}
