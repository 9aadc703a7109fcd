// Package aws provides an SNS/SQS control transport. Commands are published
// to an SNS topic and consumed through an SQS queue named after the topic.
package aws

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/drblury/lambdabridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "aws"

const (
	localstackAccountID = "000000000000"
	awsAccountIDLength  = 12
)

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// TopicResolverFactory allows overriding the topic resolver creation for testing.
var TopicResolverFactory = sns.NewGenerateArnTopicResolver

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return sns.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return sns.NewSubscriber(cfg, sqsCfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.AWSCapabilities)
}

// Build creates an SNS/SQS transport. A configured endpoint (LocalStack for
// instance) takes precedence over the one found by the SDK config loader.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	awsCfg, err := createAWSConfig(ctx, cfg, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	endpoint, err := resolveEndpoint(cfg, awsCfg)
	if err != nil {
		return transport.Transport{}, err
	}
	accountID, region := resolveAccountAndRegion(cfg, logger, awsCfg.Region)
	logger.Info("Created AWS config", watermill.LogFields{
		"region":          region,
		"account_id":      accountID,
		"custom_endpoint": endpoint != nil,
	})

	topicResolver, err := TopicResolverFactory(accountID, region)
	if err != nil {
		logger.Error("Failed to create SNS topic resolver", err, watermill.LogFields{
			"account_id": accountID,
			"region":     region,
		})
		return transport.Transport{}, err
	}

	snsOpts, sqsOpts := endpointOptions(endpoint)

	publisher, err := PublisherFactory(sns.PublisherConfig{
		TopicResolver: topicResolver,
		AWSConfig:     *awsCfg,
		OptFns:        snsOpts,
		Marshaler:     sns.DefaultMarshalerUnmarshaler{},
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		sns.SubscriberConfig{
			AWSConfig:            *awsCfg,
			OptFns:               snsOpts,
			TopicResolver:        topicResolver,
			GenerateSqsQueueName: queueNameFromTopic,
		},
		sqs.SubscriberConfig{
			AWSConfig: *awsCfg,
			OptFns:    sqsOpts,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.AWSCapabilities
}

func createAWSConfig(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (*aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	region := cfg.GetAWSRegion()
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	accessKey, secretKey := cfg.GetAWSAccessKeyID(), cfg.GetAWSSecretAccessKey()
	if accessKey != "" && secretKey != "" {
		logger.Debug("Using static AWS credentials from config", nil)
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentialsProvider(accessKey, secretKey)))
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS default config", err, watermill.LogFields{"requested_region": region})
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	// the loader may ignore options when stubbed
	if region != "" {
		awsCfg.Region = region
	}
	return &awsCfg, nil
}

func queueNameFromTopic(ctx context.Context, topicArn sns.TopicArn) (string, error) {
	topic, err := sns.ExtractTopicNameFromTopicArn(topicArn)
	if err != nil {
		return "", err
	}
	return string(topic), nil
}

// resolveEndpoint returns the configured endpoint, else the one carried by the
// SDK config (AWS_ENDPOINT_URL), else nil.
func resolveEndpoint(cfg transport.Config, awsCfg *aws.Config) (*url.URL, error) {
	raw := cfg.GetAWSEndpoint()
	if raw == "" && awsCfg.BaseEndpoint != nil {
		raw = *awsCfg.BaseEndpoint
	}
	if raw == "" {
		return nil, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse aws endpoint: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse aws endpoint: %q is not an absolute URL", raw)
	}
	return parsed, nil
}

func endpointOptions(endpoint *url.URL) ([]func(*amazonsns.Options), []func(*amazonsqs.Options)) {
	if endpoint == nil {
		return nil, nil
	}
	resolved := smithyendpoints.Endpoint{URI: *endpoint}
	return []func(*amazonsns.Options){
			amazonsns.WithEndpointResolverV2(sns.OverrideEndpointResolver{Endpoint: resolved}),
		}, []func(*amazonsqs.Options){
			amazonsqs.WithEndpointResolverV2(sqs.OverrideEndpointResolver{Endpoint: resolved}),
		}
}

func resolveAccountAndRegion(cfg transport.Config, logger watermill.LoggerAdapter, fallbackRegion string) (string, string) {
	accountID := strings.Trim(cfg.GetAWSAccountID(), "\"' ")
	region := cfg.GetAWSRegion()
	if region == "" {
		region = fallbackRegion
	}

	if cfg.GetAWSEndpoint() != "" && len(accountID) != awsAccountIDLength {
		if accountID != "" {
			logger.Info("Invalid AWS account ID; falling back to LocalStack default", watermill.LogFields{"account_id": accountID})
		}
		accountID = localstackAccountID
	}
	return accountID, region
}

func staticCredentialsProvider(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			Source:          "lambdabridge",
		}, nil
	})
}
