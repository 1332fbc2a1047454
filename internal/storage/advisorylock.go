package storage

import (
	"context"
	"fmt"
)

// AdvisoryLocker guards the sampling loop so only one process writes
// per deployment.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// TryAdvisoryLock attempts to take a session-level Postgres advisory lock.
// The lock is held on a dedicated connection until unlock is called.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection for advisory lock: %w", err)
	}

	var acquired bool
	if scanErr := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1);`, key).Scan(&acquired); scanErr != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", scanErr)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		// 解锁失败时连接仍会被释放, 会话结束锁随之释放。
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1);`, key)
		conn.Release()
	}
	return unlock, true, nil
}

var _ AdvisoryLocker = (*Store)(nil)
