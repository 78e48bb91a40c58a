package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/chatbot"
	"github.com/hackgods/dental-booking/internal/config"
	"github.com/hackgods/dental-booking/internal/llm"
	"github.com/hackgods/dental-booking/internal/notify"
	redisclient "github.com/hackgods/dental-booking/internal/redis"
	"github.com/hackgods/dental-booking/internal/slotlock"
	"github.com/hackgods/dental-booking/internal/storage"
)

const clinicSenderName = "AquaDent Clinic"

// awsLoader loads the shared AWS config on first use so deployments without
// any AWS-backed feature never need credentials.
type awsLoader struct {
	cfg    config.Config
	loaded *aws.Config
}

func (l *awsLoader) get(ctx context.Context) (aws.Config, error) {
	if l.loaded != nil {
		return *l.loaded, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(l.cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	// LocalStack and similar emulators serve every service from one endpoint.
	if l.cfg.AWSEndpointOverride != "" {
		awsCfg.BaseEndpoint = aws.String(l.cfg.AWSEndpointOverride)
	}
	l.loaded = &awsCfg
	return awsCfg, nil
}

func newLocker(cfg config.Config, rdb *redis.Client) slotlock.Locker {
	if cfg.LockBackend == "redis" {
		return redisclient.NewLocker(rdb, cfg.LockTTL)
	}
	return slotlock.NewMemory(cfg.LockTTL)
}

func newObjectStore(ctx context.Context, cfg config.Config, loader *awsLoader, logger zerolog.Logger) (booking.ObjectStore, error) {
	if cfg.S3Bucket == "" {
		logger.Warn().Msg("S3_BUCKET not set; document uploads are disabled")
		return nil, nil
	}
	awsCfg, err := loader.get(ctx)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	return storage.NewS3Store(client, cfg.S3Bucket, cfg.S3PublicBaseURL, cfg.AWSRegion, logger), nil
}

func newNotifier(ctx context.Context, cfg config.Config, loader *awsLoader, logger zerolog.Logger) (booking.Notifier, error) {
	switch cfg.NotifyProvider {
	case "ses":
		awsCfg, err := loader.get(ctx)
		if err != nil {
			return nil, err
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.NotifyFromEmail, clinicSenderName, logger)
		return notify.NewEmailNotifier(sender, cfg.NotifyClinicEmail, logger), nil
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for NOTIFY_PROVIDER=sendgrid")
		}
		sender := notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.NotifyFromEmail, clinicSenderName, logger)
		return notify.NewEmailNotifier(sender, cfg.NotifyClinicEmail, logger), nil
	case "sqs":
		if cfg.NotifyQueueURL == "" {
			return nil, fmt.Errorf("NOTIFY_QUEUE_URL is required for NOTIFY_PROVIDER=sqs")
		}
		awsCfg, err := loader.get(ctx)
		if err != nil {
			return nil, err
		}
		return notify.NewSQSDispatcher(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL), nil
	case "log", "":
		return notify.NewEmailNotifier(notify.NewLogSender(logger), cfg.NotifyClinicEmail, logger), nil
	default:
		return nil, fmt.Errorf("unknown NOTIFY_PROVIDER %q", cfg.NotifyProvider)
	}
}

// newLanguageModel returns nil when no model is configured; the chatbot then
// runs on keyword extraction and canned answers. When both Gemini and Bedrock
// are configured the other one backs up the primary.
func newLanguageModel(ctx context.Context, cfg config.Config, loader *awsLoader, logger zerolog.Logger) (llm.Client, func(), error) {
	cleanup := func() {}
	switch cfg.LLMProvider {
	case "none", "":
		return nil, cleanup, nil
	case "gemini", "bedrock":
	default:
		return nil, cleanup, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	var gemini, bedrock llm.Client
	if cfg.GeminiAPIKey != "" {
		c, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, cleanup, err
		}
		gemini = c
		cleanup = func() { _ = c.Close() }
	}
	if cfg.BedrockModelID != "" {
		awsCfg, err := loader.get(ctx)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		bedrock = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	}

	primary, backup := gemini, bedrock
	if cfg.LLMProvider == "bedrock" {
		primary, backup = bedrock, gemini
	}
	if primary == nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("LLM_PROVIDER=%s is selected but not configured", cfg.LLMProvider)
	}
	if backup != nil {
		return llm.NewFallback(primary, backup, logger), cleanup, nil
	}
	return primary, cleanup, nil
}

func newSessionStore(cfg config.Config, rdb *redis.Client) chatbot.SessionStore {
	if cfg.SessionBackend == "redis" {
		return chatbot.NewRedisSessionStore(rdb, cfg.SessionTTL)
	}
	return chatbot.NewMemorySessionStore(cfg.SessionTTL)
}
