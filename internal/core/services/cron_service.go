package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reconciler is the pass the cron job runs
type Reconciler interface {
	ReconcileOnce(ctx context.Context) (*ReconcileReport, error)
}

// CronService runs reconciliation passes in the background of the payment service
type CronService struct {
	cron        *cron.Cron
	reconciler  Reconciler
	passTimeout time.Duration
	log         logrus.FieldLogger
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewCronService schedules reconciler on spec ("@every 1m", "*/5 * * * *").
// A pass still running when the next one is due is skipped.
func NewCronService(reconciler Reconciler, spec string, passTimeout time.Duration, log logrus.FieldLogger) (*CronService, error) {
	cronLog := cron.PrintfLogger(log)
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &CronService{
		cron:        c,
		reconciler:  reconciler,
		passTimeout: passTimeout,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}

	if _, err := c.AddFunc(spec, s.run); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the scheduler
func (s *CronService) Start() {
	s.cron.Start()
	s.log.Info("reconciliation cron started")
}

// Stop cancels a running pass and waits for it to return
func (s *CronService) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("reconciliation cron stopped")
}

func (s *CronService) run() {
	ctx := s.ctx
	if s.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.passTimeout)
		defer cancel()
	}

	if _, err := s.reconciler.ReconcileOnce(ctx); err != nil {
		s.log.WithError(err).Error("reconciliation pass failed")
	}
}
