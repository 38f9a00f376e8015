// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package mail

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/samber/oops"
)

// SESConfig holds Amazon SES settings. Credentials come from the default
// AWS chain (environment, shared config, instance role).
type SESConfig struct {
	Region string
}

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport delivers through the Amazon SES v2 API.
type SESTransport struct {
	client sesAPI
}

// NewSESTransport loads the AWS configuration and creates an SESTransport.
func NewSESTransport(ctx context.Context, cfg SESConfig) (*SESTransport, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, oops.Code("MAIL_SES_CONFIG_INVALID").With("region", cfg.Region).Wrap(err)
	}
	return &SESTransport{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// Deliver sends msg with both HTML and text bodies.
func (t *SESTransport) Deliver(ctx context.Context, msg Message) error {
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if _, err := t.client.SendEmail(ctx, in); err != nil {
		return oops.Code("MAIL_SES_FAILED").Wrap(err)
	}
	return nil
}
