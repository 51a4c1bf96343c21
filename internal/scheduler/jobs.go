package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/extrace/notify/internal/domain"
	"github.com/extrace/notify/internal/notification"
	"github.com/extrace/notify/internal/pkg/logger"
)

// Trigger names.
const (
	WeeklyReports  = "weeklyReports"
	MonthlyReports = "monthlyReports"
	BudgetCheck    = "budgetCheck"
	Newsletter     = "newsletter"
	DailyReports   = "dailyReports"
)

// Notifier is the part of the notification engine the jobs drive.
type Notifier interface {
	GenerateWeeklyReport(ctx context.Context, userID string) error
	GenerateMonthlyReport(ctx context.Context, userID string, month time.Month, year int) error
	CheckBudgetAlert(ctx context.Context, userID, categoryName string) error
	SendPersonalizedTips(ctx context.Context, userID string) error
	FlushDigest(ctx context.Context, userID string, freq domain.Frequency) error
}

// Recipients enumerates opted-in users.
type Recipients interface {
	ListWeeklyReportRecipients(ctx context.Context) ([]domain.Preferences, error)
	ListMonthlyReportRecipients(ctx context.Context) ([]domain.Preferences, error)
	ListNewsletterRecipients(ctx context.Context) ([]domain.Preferences, error)
	ListDigestRecipients(ctx context.Context, freq domain.Frequency) ([]domain.Preferences, error)
}

// Delays is the pause between consecutive users within one firing.
type Delays struct {
	Budget     time.Duration
	Report     time.Duration
	Newsletter time.Duration
	Digest     time.Duration
}

// DefaultDelays mirrors the production pacing.
func DefaultDelays() Delays {
	return Delays{
		Budget:     500 * time.Millisecond,
		Report:     time.Second,
		Newsletter: 2 * time.Second,
		Digest:     time.Second,
	}
}

// JobDeps wires the default jobs.
type JobDeps struct {
	Engine     Notifier
	Recipients Recipients
	Users      notification.UserReader
	Categories notification.CategoryReader
	Delays     Delays
	Clock      Clock
}

type jobs struct {
	JobDeps
	log *logger.Logger
}

// DefaultJobs returns the fixed trigger registry.
func DefaultJobs(d JobDeps) []Job {
	if d.Clock == nil {
		d.Clock = realClock{}
	}
	j := &jobs{JobDeps: d, log: logger.Default().With("component", "scheduler-jobs")}
	return []Job{
		{Name: WeeklyReports, Cadence: Cadence{Kind: Weekly, Weekday: time.Monday, Hour: 9}, Run: j.weeklyReports},
		{Name: MonthlyReports, Cadence: Cadence{Kind: Monthly, DayOfMonth: 1, Hour: 9}, Run: j.monthlyReports},
		{Name: BudgetCheck, Cadence: Cadence{Kind: HourlyRange, Hour: 9, EndHour: 17}, Run: j.budgetCheck},
		{Name: Newsletter, Cadence: Cadence{Kind: Weekly, Weekday: time.Friday, Hour: 10}, Run: j.newsletter},
		{Name: DailyReports, Cadence: Cadence{Kind: Daily, Hour: 9}, Run: j.dailyReports},
	}
}

// forEach calls fn for every id in order, pausing between users. Each call
// runs on a context detached from cancellation so a stop does not abort a
// send midway; the remaining users are skipped once ctx is done.
func (j *jobs) forEach(ctx context.Context, job string, ids []string, delay time.Duration, fn func(ctx context.Context, userID string) error) error {
	var failed int
	for i, id := range ids {
		if ctx.Err() != nil {
			j.log.Info("batch interrupted", "job", job, "remaining", len(ids)-i)
			break
		}
		if err := fn(context.WithoutCancel(ctx), id); err != nil {
			failed++
			j.log.Error("user failed", "job", job, "user_id", id, "error", err.Error())
		}
		if i < len(ids)-1 && !sleep(ctx, j.Clock, delay) {
			j.log.Info("batch interrupted", "job", job, "remaining", len(ids)-i-1)
			break
		}
	}
	j.log.Info("batch done", "job", job, "users", len(ids), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%s: %d of %d users failed", job, failed, len(ids))
	}
	return nil
}

func userIDs(prefs []domain.Preferences, keep func(domain.Preferences) bool) []string {
	out := make([]string, 0, len(prefs))
	for _, p := range prefs {
		if keep == nil || keep(p) {
			out = append(out, p.UserID)
		}
	}
	return out
}

func (j *jobs) weeklyReports(ctx context.Context, fire time.Time) error {
	prefs, err := j.Recipients.ListWeeklyReportRecipients(ctx)
	if err != nil {
		return fmt.Errorf("list weekly recipients: %w", err)
	}
	today := notification.ISOWeekday(fire)
	ids := userIDs(prefs, func(p domain.Preferences) bool {
		return p.Reports.Weekly.DayOfWeek == today
	})
	reportErr := j.forEach(ctx, WeeklyReports, ids, j.Delays.Report, j.Engine.GenerateWeeklyReport)
	return errors.Join(reportErr, j.flush(ctx, domain.FrequencyWeekly))
}

func (j *jobs) monthlyReports(ctx context.Context, fire time.Time) error {
	prefs, err := j.Recipients.ListMonthlyReportRecipients(ctx)
	if err != nil {
		return fmt.Errorf("list monthly recipients: %w", err)
	}
	day := fire.UTC().Day()
	ids := userIDs(prefs, func(p domain.Preferences) bool {
		return p.Reports.Monthly.DayOfMonth == day
	})
	year, month := notification.PreviousMonth(fire)
	return j.forEach(ctx, MonthlyReports, ids, j.Delays.Report, func(ctx context.Context, userID string) error {
		return j.Engine.GenerateMonthlyReport(ctx, userID, month, year)
	})
}

func (j *jobs) budgetCheck(ctx context.Context, _ time.Time) error {
	users, err := j.Users.ListActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return j.forEach(ctx, BudgetCheck, ids, j.Delays.Budget, func(ctx context.Context, userID string) error {
		cats, err := j.Categories.ListBudgetedCategories(ctx, userID)
		if err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		var errs []error
		for _, c := range cats {
			if err := j.Engine.CheckBudgetAlert(ctx, userID, c.Name); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			}
		}
		return errors.Join(errs...)
	})
}

func (j *jobs) newsletter(ctx context.Context, _ time.Time) error {
	prefs, err := j.Recipients.ListNewsletterRecipients(ctx)
	if err != nil {
		return fmt.Errorf("list newsletter recipients: %w", err)
	}
	return j.forEach(ctx, Newsletter, userIDs(prefs, nil), j.Delays.Newsletter, j.Engine.SendPersonalizedTips)
}

func (j *jobs) dailyReports(ctx context.Context, _ time.Time) error {
	return j.flush(ctx, domain.FrequencyDaily)
}

func (j *jobs) flush(ctx context.Context, freq domain.Frequency) error {
	if ctx.Err() != nil {
		return nil
	}
	prefs, err := j.Recipients.ListDigestRecipients(ctx, freq)
	if err != nil {
		return fmt.Errorf("list %s digest recipients: %w", freq, err)
	}
	return j.forEach(ctx, string(freq)+"Digest", userIDs(prefs, nil), j.Delays.Digest, func(ctx context.Context, userID string) error {
		return j.Engine.FlushDigest(ctx, userID, freq)
	})
}
