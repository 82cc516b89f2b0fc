package chrono

import (
	"context"
	"fmt"
	"strings"
	"time"

	"catalogscraper/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

const report_cron = "cron"

// CronAPI runs jobs on cron schedules.
type CronAPI interface {
	// Cron schedules job on spec. The context handed to job is cancelled by Stop.
	Cron(spec string, job func(ctx context.Context)) error
	// Next is the earliest upcoming run, zero when nothing is scheduled.
	Next() time.Time
	Stop()
}

// StandardCron runs jobs with robfig/cron. A run is skipped while the previous run of the same job is
// still going.
type StandardCron struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewStandardCron(ctx context.Context, tel telemetry.API) StandardCron {
	logger := cronLogger{tel: tel}
	cronner := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	)
	cronner.Start()

	ctx, cancel := context.WithCancel(ctx)
	return StandardCron{
		cron:   cronner,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s StandardCron) Cron(spec string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		job(s.ctx)
	})
	return err
}

func (s StandardCron) Next() time.Time {
	var next time.Time
	for _, entry := range s.cron.Entries() {
		if next.IsZero() || entry.Next.Before(next) {
			next = entry.Next
		}
	}
	return next
}

// Stop cancels running jobs and waits for them to return.
func (s StandardCron) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

type cronLogger struct {
	tel telemetry.API
}

// pairs renders cron's alternating keys and values as `key=value` words, a dangling key is dropped.
func pairs(keysAndValues []any) string {
	var out strings.Builder
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if out.Len() > 0 {
			out.WriteString(" ")
		}
		fmt.Fprintf(&out, "%v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	return out.String()
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug("cron "+msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken(report_cron, fmt.Errorf("%s: %w", msg, err), pairs(keysAndValues))
}
