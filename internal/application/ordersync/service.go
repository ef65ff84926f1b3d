package ordersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/infrastructure/logger"
)

// ErrUnknownPass is returned for a pass name the service does not run
var ErrUnknownPass = errors.New("ordersync: unknown sync pass")

// PassResult is the outcome of one RunPass call. Exactly one of the report
// pointers is set on success.
type PassResult struct {
	RunID      string
	Pass       integration.SyncPass
	StartedAt  time.Time
	FinishedAt time.Time
	Inbound    *InboundReport
	Outbound   *OutboundReport
	Sweep      *SweepResult
}

// Service runs pipeline passes one at a time per storefront account.
type Service struct {
	inbound  *InboundPass
	outbound *OutboundPass
	migrator *Migrator
	locker   Locker
	account  string
	lockTTL  time.Duration
	logger   *zap.Logger
}

// NewService creates the pass runner. Every pass takes the same per-account
// lock, so inbound and outbound runs never overlap on the shared store.
func NewService(inbound *InboundPass, outbound *OutboundPass, migrator *Migrator, locker Locker, account string, lockTTL time.Duration, log *zap.Logger) *Service {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &Service{
		inbound:  inbound,
		outbound: outbound,
		migrator: migrator,
		locker:   locker,
		account:  account,
		lockTTL:  lockTTL,
		logger:   log,
	}
}

// LockKey is the lock taken for the service's storefront account
func (s *Service) LockKey() string {
	return "ordersync:lock:" + s.account
}

// RunPass executes one pass under the account lock
func (s *Service) RunPass(ctx context.Context, pass integration.SyncPass) (PassResult, error) {
	result := PassResult{RunID: uuid.NewString(), Pass: pass, StartedAt: time.Now()}
	if !pass.IsValid() {
		return result, fmt.Errorf("%w: %q", ErrUnknownPass, pass)
	}

	ctx, log := logger.WithRun(ctx, s.logger, result.RunID, pass.String())
	release, err := s.locker.Acquire(ctx, s.LockKey(), s.lockTTL)
	if err != nil {
		return result, fmt.Errorf("acquire %s: %w", s.LockKey(), err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release run lock", zap.String("key", s.LockKey()), zap.Error(err))
		}
	}()

	log.Info("sync pass started", zap.String("account", s.account))
	err = s.dispatch(ctx, pass, &result)
	result.FinishedAt = time.Now()

	fields := []zap.Field{zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt))}
	if err != nil {
		log.Error("sync pass failed", append(fields, zap.Error(err))...)
		return result, err
	}
	log.Info("sync pass finished", append(fields, summary(result)...)...)
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, pass integration.SyncPass, result *PassResult) error {
	switch pass {
	case integration.SyncPassInbound:
		rep, err := s.inbound.Run(ctx)
		result.Inbound = &rep
		return err
	case integration.SyncPassOutbound:
		rep, err := s.outbound.Run(ctx)
		result.Outbound = &rep
		return err
	default:
		var rep SweepResult
		err := runStage(ctx, pass, "sweep", func(ctx context.Context) error {
			var err error
			rep, err = s.migrator.Sweep(ctx)
			return err
		})
		result.Sweep = &rep
		return err
	}
}

func summary(r PassResult) []zap.Field {
	switch {
	case r.Inbound != nil:
		return []zap.Field{
			zap.Bool("empty", r.Inbound.Empty),
			zap.Int("fetched", r.Inbound.Fetched),
			zap.Int("known", r.Inbound.Known),
			zap.Int64("upserted", r.Inbound.Open.Upserted+r.Inbound.Pending.Upserted),
			zap.Int64("promoted", r.Inbound.Promoted.Inserted),
			zap.Strings("exports", r.Inbound.Exports),
		}
	case r.Outbound != nil:
		return []zap.Field{
			zap.Bool("empty", r.Outbound.Empty),
			zap.Int("erp_rows", r.Outbound.Rows),
			zap.Int64("modified", r.Outbound.Applied.Modified),
			zap.Int("fulfilled", r.Outbound.Fulfilled),
			zap.Int64("migrated", r.Outbound.Migration.Removed),
			zap.Strings("ambiguous", r.Outbound.Reconcile.Ambiguous),
		}
	case r.Sweep != nil:
		return []zap.Field{
			zap.Int("open_closed_duplicates", r.Sweep.OpenClosed),
			zap.Int("pending_duplicates", r.Sweep.PendingLater),
		}
	}
	return nil
}
