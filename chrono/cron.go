// chrono/cron.go
package chrono

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs jobs on cron specs evaluated in a fixed location.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(location *time.Location) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger{}),
			cron.WithLocation(location),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
		),
	}
}

// Add registers callback under spec (standard 5-field syntax).
func (s *Scheduler) Add(name, spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	slog.Info("Scheduler: job registered", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// HoursSpec turns a list of hours into a daily cron spec, e.g. [9 13] -> "0 9,13 * * *".
func HoursSpec(hours []int) string {
	spec := ""
	for i, h := range hours {
		if i > 0 {
			spec += ","
		}
		spec += fmt.Sprint(h)
	}
	return fmt.Sprintf("0 %s * * *", spec)
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"err", err}, keysAndValues...)...)
}
