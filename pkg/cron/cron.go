package cron

import (
	"context"
	"fmt"
	"time"

	"ucode/ucode_go_dynamic_query_service/pkg/alias"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"

	"github.com/robfig/cron/v3"
)

type TaskScheduler struct {
	cronJob  *cron.Cron
	logger   logger.LoggerI
	aliases  alias.ResolverI
	interval time.Duration
}

type TaskSchedulerI interface {
	RunJobs(context.Context) error
	RefreshAliases(context.Context) error
	Stop()
}

func New(log logger.LoggerI, aliases alias.ResolverI, interval time.Duration) TaskSchedulerI {
	var cronJob = cron.New()
	defer cronJob.Start()
	return &TaskScheduler{
		cronJob:  cronJob,
		logger:   log,
		aliases:  aliases,
		interval: interval,
	}
}

func (t *TaskScheduler) RunJobs(ctx context.Context) error {
	t.logger.Info("Jobs Started:", logger.Duration("alias_refresh_interval", t.interval))

	_, err := t.cronJob.AddFunc(fmt.Sprintf("@every %s", t.interval), func() {
		err := t.RefreshAliases(ctx)
		if err != nil {
			t.logger.Error("error in RefreshAliases", logger.Error(err))
		}
	})

	return err
}

func (t *TaskScheduler) RefreshAliases(ctx context.Context) error {
	t.logger.Debug("Running RefreshAliases job ...")

	return t.aliases.Refresh(ctx)
}

// Stop waits for a running job to finish.
func (t *TaskScheduler) Stop() {
	<-t.cronJob.Stop().Done()
}
