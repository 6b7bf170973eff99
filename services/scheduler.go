// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// ReportArchiver stores a JSON document and returns where it landed.
type ReportArchiver interface {
	UploadJSON(ctx context.Context, key string, v interface{}) (string, error)
}

type SchedulerConfig struct {
	SweepInterval  time.Duration
	ReportInterval time.Duration
	Archiver       ReportArchiver // nil disables the report job
	Now            func() time.Time
}

// StartVestingScheduler runs the expiry and completion sweeps, and the campaign report
// archive when an archiver is configured. The caller owns Shutdown.
func StartVestingScheduler(grants *GrantService, summaries *SummaryService, cfg SchedulerConfig) (gocron.Scheduler, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Every sweep interval: expire grants past their campaign deadline
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() {
			n, err := grants.ExpireOverdue(context.Background(), cfg.Now())
			if err != nil {
				log.Printf("[Scheduler] Expiry sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[Scheduler] ⌛ Expired %d overdue grants", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	// Every sweep interval: persist completed schedules
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() {
			n, err := grants.CompleteFinished(context.Background(), cfg.Now())
			if err != nil {
				log.Printf("[Scheduler] Completion sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[Scheduler] ✅ Marked %d grants completed", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if cfg.Archiver != nil && cfg.ReportInterval > 0 {
		if _, err := sched.NewJob(
			gocron.DurationJob(cfg.ReportInterval),
			gocron.NewTask(func() {
				url, err := ArchiveCampaignReport(context.Background(), summaries, cfg.Archiver, cfg.Now())
				if err != nil {
					log.Printf("[Scheduler] Report archive failed: %v", err)
					return
				}
				log.Printf("[Scheduler] 📦 Campaign report archived to %s", url)
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}

// CampaignReport is the snapshot archived by the report job.
type CampaignReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Campaigns   []CampaignStats `json:"campaigns"`
}

func ReportKey(asOf time.Time) string {
	return fmt.Sprintf("reports/campaigns/%s.json", asOf.UTC().Format("20060102T150405Z"))
}

func ArchiveCampaignReport(ctx context.Context, summaries *SummaryService, archiver ReportArchiver, asOf time.Time) (string, error) {
	stats, err := summaries.ForAllCampaigns(ctx, asOf)
	if err != nil {
		return "", err
	}
	return archiver.UploadJSON(ctx, ReportKey(asOf), CampaignReport{GeneratedAt: asOf, Campaigns: stats})
}
