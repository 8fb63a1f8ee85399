package bootstrap

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/slotwatch/internal/config"
	"github.com/wolfman30/slotwatch/internal/notify"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

// BuildDispatcher registers every transport whose credentials are configured.
// The "log" transport is always available.
func BuildDispatcher(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, observer notify.Observer) *notify.Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	d := notify.NewDispatcher(logger, observer)
	d.Register("log", notify.NewLogTransport(logger))

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	withClient := notify.WithHTTPClient(httpClient)

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		d.Register("telegram", notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, withClient))
	}
	if cfg.PushoverToken != "" && cfg.PushoverUser != "" {
		d.Register("pushover", notify.NewPushover(cfg.PushoverToken, cfg.PushoverUser, withClient))
	}
	if cfg.PushbulletToken != "" {
		d.Register("pushbullet", notify.NewPushbullet(cfg.PushbulletToken, withClient))
	}
	if cfg.GotifyURL != "" && cfg.GotifyToken != "" {
		d.Register("gotify", notify.NewGotify(cfg.GotifyURL, cfg.GotifyToken, withClient))
	}
	if cfg.NotifyEmailTo != "" {
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			d.Register("sendgrid", notify.NewEmailTransport(sender, cfg.NotifyEmailTo))
		}
	}

	needsAWS := (cfg.NotifyEmailTo != "" && cfg.SESFromEmail != "") || cfg.NotifyQueueURL != ""
	if needsAWS {
		awsCfg, err := (&awsLoader{cfg: cfg}).get(ctx)
		if err != nil {
			logger.Warn("aws transports disabled", "error", err)
		} else {
			if cfg.NotifyEmailTo != "" && cfg.SESFromEmail != "" {
				sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
					FromEmail:        cfg.SESFromEmail,
					FromName:         cfg.SESFromName,
					ConfigurationSet: cfg.SESConfigurationSet,
				}, logger)
				d.Register("ses", notify.NewEmailTransport(sender, cfg.NotifyEmailTo))
			}
			if cfg.NotifyQueueURL != "" {
				d.Register("sqs", notify.NewSQSTransport(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL))
			}
		}
	}

	logger.Info("notification transports ready", "transports", d.Names(), "default", cfg.NotificationChannel)
	return d
}
