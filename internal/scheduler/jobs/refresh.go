// Package jobs holds the concrete scheduled jobs.
package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/kabupicks/internal/ingest"
	"github.com/wonny/kabupicks/pkg/logger"
)

// DailyRefreshJob fetches the news feed and rebuilds the pick snapshot once
// per day after the market close.
type DailyRefreshJob struct {
	ingest   *ingest.Service
	schedule string
	logger   *logger.Logger
}

// NewDailyRefreshJob creates the daily refresh job. An empty schedule uses
// the default of 18:30 UTC+9 expressed in server time.
func NewDailyRefreshJob(svc *ingest.Service, schedule string, log *logger.Logger) *DailyRefreshJob {
	if schedule == "" {
		schedule = "0 30 18 * * *"
	}
	return &DailyRefreshJob{
		ingest:   svc,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name.
func (j *DailyRefreshJob) Name() string {
	return "daily_refresh"
}

// Schedule returns the cron schedule.
func (j *DailyRefreshJob) Schedule() string {
	return j.schedule
}

// Run fetches news, upserts events and rebuilds the snapshot.
func (j *DailyRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled news refresh")

	result, err := j.ingest.RefreshNews(ctx)
	if err != nil {
		return fmt.Errorf("scheduled news refresh: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"news":  result.NewsCount,
		"picks": result.PicksCount,
		"date":  result.Date,
	}).Info("Scheduled news refresh completed")

	return nil
}
