package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker processes backup tasks from Redis.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log *zap.Logger
}

func NewWorker(opt asynq.RedisClientOpt, runner BackupRunner, log *zap.Logger) *Worker {
	log = log.Named("backup-worker")
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"default": 1},
		Logger:      log.Sugar(),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBookingBackup, handleBackupTask(runner, log))
	return &Worker{srv: srv, mux: mux, log: log}
}

// Start launches the worker, retrying a few times when Redis is not reachable yet.
func (w *Worker) Start() error {
	const maxAttempts = 5
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = w.srv.Start(w.mux); err == nil {
			w.log.Info("backup worker started")
			return nil
		}
		w.log.Warn("backup worker failed to start", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt*2) * time.Second)
	}
	return fmt.Errorf("start backup worker: %w", err)
}

func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

func handleBackupTask(runner BackupRunner, log *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p BackupPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode backup payload: %v: %w", err, asynq.SkipRetry)
		}
		if err := runner.RunBackup(ctx, p.PaymentIntentID, p.ReservationCode); err != nil {
			log.Error("backup booking failed", zap.String("payment_intent_id", p.PaymentIntentID), zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return nil
	}
}
