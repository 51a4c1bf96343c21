package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/extrace/notify/internal/api"
	"github.com/extrace/notify/internal/config"
	"github.com/extrace/notify/internal/events"
	"github.com/extrace/notify/internal/mailing"
	"github.com/extrace/notify/internal/notification"
	"github.com/extrace/notify/internal/pkg/distlock"
	"github.com/extrace/notify/internal/pkg/logger"
	"github.com/extrace/notify/internal/repository/postgres"
	"github.com/extrace/notify/internal/scheduler"
	"github.com/extrace/notify/internal/service/preferences"
)

// app is the assembled process: everything run needs to serve and to drain.
type app struct {
	addr      string
	router    http.Handler
	sched     *scheduler.Scheduler
	eventRuns *notification.Dispatcher
	jobRuns   *notification.Dispatcher
	consumer  *events.Consumer // nil unless AMQP is configured
}

// newApp wires every component from cfg. redisClient may be nil. The
// scheduler is not started here.
func newApp(ctx context.Context, cfg *config.Config, db *sql.DB, redisClient *redis.Client) (*app, error) {
	// Templates: built-ins, optionally overridden from S3.
	var (
		templateSource mailing.TemplateSource
		bucketProbe    api.BucketHeader
	)
	if cfg.Templates.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Templates.S3Region))
		if err != nil {
			logger.Warn("S3 template overrides disabled", "error", err.Error())
		} else {
			client := s3.NewFromConfig(awsCfg)
			templateSource = mailing.NewS3TemplateSource(client, cfg.Templates.S3Bucket, cfg.Templates.S3Prefix)
			bucketProbe = client
		}
	}
	sources, err := mailing.LoadTemplates(ctx, templateSource)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	templates, err := mailing.NewTemplateEngine(sources)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	var transport mailing.Transport
	switch cfg.Email.Transport {
	case "log":
		transport = mailing.NewLogTransport(logger.Default().With("component", "log-transport"))
	default:
		transport = mailing.NewSESTransport(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region, cfg.SES.Timeout())
	}
	gateway := mailing.NewGateway(templates, transport, mailing.Options{
		FromName:  cfg.Email.FromName,
		FromEmail: cfg.Email.FromEmail,
		ReplyTo:   cfg.Email.ReplyTo,
	})
	logger.Info("email gateway ready", "transport", transport.Name(), "templates", len(sources))

	finance := postgres.NewFinanceRepo(db)
	prefs := preferences.NewService(postgres.NewPreferencesRepo(db))

	deps := notification.Deps{
		Preferences:  prefs,
		Transactions: finance,
		Categories:   finance,
		Users:        finance,
		Sender:       gateway,
	}
	if redisClient != nil {
		deps.Digest = notification.NewRedisDigestBuffer(redisClient)
	} else {
		logger.Warn("no Redis configured, daily and weekly digests are disabled")
	}
	if cfg.Newsletter.FeedURL != "" {
		deps.Feed = notification.NewRSSFeedSource(cfg.Newsletter.FeedURL)
	}
	engine := notification.NewEngine(deps, notification.Config{
		FrontendURL:      cfg.Email.FrontendURL,
		MaxProductUpdate: cfg.Newsletter.MaxItems,
	})

	a := &app{
		addr:      fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port),
		eventRuns: notification.NewDispatcher(cfg.Dispatch.Timeout(), notification.LogAndDrop),
		jobRuns:   notification.NewDispatcher(0, notification.LogAndDrop),
	}

	var opts []scheduler.Option
	if cfg.Scheduler.DistributedLock {
		if locks := distlock.NewFactory(redisClient, db, cfg.Scheduler.LockTTL()); locks != nil {
			opts = append(opts, scheduler.WithLocks(locks))
		}
	}
	a.sched = scheduler.New(scheduler.DefaultJobs(scheduler.JobDeps{
		Engine:     engine,
		Recipients: prefs,
		Users:      finance,
		Categories: finance,
		Delays: scheduler.Delays{
			Budget:     millis(cfg.Scheduler.BudgetDelayMS),
			Report:     millis(cfg.Scheduler.ReportDelayMS),
			Newsletter: millis(cfg.Scheduler.NewsletterDelay),
			Digest:     millis(cfg.Scheduler.DigestDelayMS),
		},
	}), opts...)

	a.router = api.NewRouter(api.Deps{
		Preferences:    prefs,
		Notifier:       engine,
		Scheduler:      a.sched,
		Dispatcher:     a.eventRuns,
		JobDispatcher:  a.jobRuns,
		Health:         api.NewHealthChecker(db, redisClient, bucketProbe, cfg.Templates.S3Bucket, a.sched.Running),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	if cfg.Events.AMQPURL != "" {
		a.consumer = events.NewConsumer(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.Queue, events.NewHandler(engine))
	}
	return a, nil
}

// drain stops the scheduler and waits for dispatched work until ctx expires.
func (a *app) drain(ctx context.Context) {
	a.sched.Stop()
	if err := a.eventRuns.Wait(ctx); err != nil {
		logger.Warn("abandoning in-flight event handlers", "error", err.Error())
	}
	if err := a.jobRuns.Wait(ctx); err != nil {
		logger.Warn("abandoning in-flight manual job runs", "error", err.Error())
	}
}
