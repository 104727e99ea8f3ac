package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/scheduler_hub/internal/repository/base"
	"github.com/Freeeeeet/scheduler_hub/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store PostgreSQL реализация service.Store
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Repos возвращает репозитории, работающие напрямую через пул
func (s *Store) Repos() service.Repos {
	return reposFor(s.pool)
}

// InTx выполняет fn в транзакции READ COMMITTED; изменяемые слоты блокируются FOR UPDATE
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repos service.Repos) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, reposFor(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Ping проверяет соединение с базой
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func reposFor(db base.DBTX) service.Repos {
	return service.Repos{
		Slots:    NewSlotRepository(db),
		Requests: NewRequestRepository(db),
		Users:    NewUserRepository(db),
	}
}

var _ base.DBTX = (pgx.Tx)(nil)
