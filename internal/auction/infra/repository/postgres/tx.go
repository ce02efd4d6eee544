package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/cristianortiz/auctionHouse/internal/auction/infra/ledger"
	"github.com/cristianortiz/auctionHouse/internal/shared/db"
	"github.com/cristianortiz/auctionHouse/internal/shared/logger"
	userpg "github.com/cristianortiz/auctionHouse/internal/user/infra/repository/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
	oneWinningBidIndex           = "bids_one_winning_idx"
)

// TxManager implements domain.TxManager over a pgx pool.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

func (m *TxManager) Repositories() domain.Repositories {
	return bind(m.pool)
}

func bind(q db.Querier) domain.Repositories {
	return domain.Repositories{
		Auctions: NewAuctionRepository(q),
		Bids:     NewBidRepository(q),
		Ledger:   ledger.NewUserLedger(userpg.NewUserRepository(q)),
	}
}

// WithinTx runs fn in a read committed transaction. Row locks taken by
// GetForUpdate and the conditional balance debit serialize competing writers.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) (err error) {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		log.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("begin transaction: %w", mapError(err))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic during transaction", zap.Any("panic", r))
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			log.Debug("Rolling back transaction", zap.Error(err))
			_ = tx.Rollback(ctx)
			err = mapError(err)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error("Failed to commit transaction", zap.Error(commitErr))
			err = fmt.Errorf("commit transaction: %w", mapError(commitErr))
		}
	}()

	err = fn(ctx, bind(tx))
	return err
}

// mapError turns serialization conflicts into domain.ErrConcurrentModification
// so the caller's retry policy picks them up.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == sqlStateSerializationFailure, pgErr.Code == sqlStateDeadlockDetected:
		return fmt.Errorf("%w: %s", domain.ErrConcurrentModification, pgErr.Message)
	case pgErr.Code == sqlStateUniqueViolation && pgErr.ConstraintName == oneWinningBidIndex:
		return fmt.Errorf("%w: %s", domain.ErrConcurrentModification, pgErr.Message)
	}
	return err
}
