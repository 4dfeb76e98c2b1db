// Package tasks schedules the delayed webhook backup booking.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeBookingBackup = "booking:backup"

type BackupPayload struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ReservationCode string `json:"reservation_code"`
}

// BackupRunner performs the backup booking check for one payment intent.
type BackupRunner interface {
	RunBackup(ctx context.Context, intentID, reservationCode string) error
}

// NewBackupTask builds a one-shot task delayed by delay. The task id is derived from the intent so a
// redelivered webhook does not enqueue a second backup.
func NewBackupTask(p BackupPayload, delay time.Duration) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingBackup, b)
	opts := []asynq.Option{
		asynq.ProcessIn(delay),
		asynq.TaskID("backup:" + p.PaymentIntentID),
		asynq.MaxRetry(0),
		asynq.Timeout(2 * time.Minute),
	}
	return task, opts, nil
}

// AsynqScheduler enqueues backups in Redis so they survive a restart during the delay.
type AsynqScheduler struct {
	client *asynq.Client
	delay  time.Duration
	log    *zap.Logger
}

func NewAsynqScheduler(opt asynq.RedisClientOpt, delay time.Duration, log *zap.Logger) *AsynqScheduler {
	return &AsynqScheduler{client: asynq.NewClient(opt), delay: delay, log: log.Named("backup")}
}

func (s *AsynqScheduler) ScheduleBackup(ctx context.Context, intentID, reservationCode string) error {
	task, opts, err := NewBackupTask(BackupPayload{PaymentIntentID: intentID, ReservationCode: reservationCode}, s.delay)
	if err != nil {
		return err
	}
	info, err := s.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		s.log.Info("backup already scheduled", zap.String("payment_intent_id", intentID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue backup: %w", err)
	}
	s.log.Info("backup scheduled", zap.String("payment_intent_id", intentID), zap.String("task_id", info.ID), zap.Time("process_at", info.NextProcessAt))
	return nil
}

func (s *AsynqScheduler) Close() error {
	return s.client.Close()
}

// TimerScheduler runs backups in-process after the delay. Pending backups are lost on restart.
type TimerScheduler struct {
	delay  time.Duration
	runner BackupRunner
	log    *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewTimerScheduler(delay time.Duration, log *zap.Logger) *TimerScheduler {
	return &TimerScheduler{delay: delay, log: log.Named("backup"), pending: make(map[string]*time.Timer)}
}

// Bind sets the runner invoked when a timer fires. Must be called before the first schedule.
func (s *TimerScheduler) Bind(r BackupRunner) {
	s.runner = r
}

func (s *TimerScheduler) ScheduleBackup(_ context.Context, intentID, reservationCode string) error {
	if s.runner == nil {
		return errors.New("backup scheduler has no runner")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[intentID]; ok {
		return nil
	}
	s.pending[intentID] = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.pending, intentID)
		s.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.runner.RunBackup(ctx, intentID, reservationCode); err != nil {
			s.log.Error("backup booking failed", zap.String("payment_intent_id", intentID), zap.Error(err))
		}
	})
	return nil
}

// Stop cancels timers that have not fired yet.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}
