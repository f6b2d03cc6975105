package txtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/okx/txprop/packages/node"
	"github.com/okx/txprop/packages/records"
	"github.com/okx/txprop/packages/wait"
)

// PoolReader reports where a transaction currently is. *node.Client implements it.
type PoolReader interface {
	TxStatus(ctx context.Context, txid string) (node.Status, error)
}

type poolStatusReader interface {
	PoolStatus(ctx context.Context) (pending, queued uint64, err error)
}

// Monitor waits until every id shows up in the node's pending pool and returns, for
// each one, the time it was first seen. After every sighting the remaining ids are
// scanned again from the start. Query errors count as "not seen yet".
//
// If the timeout passes first, Monitor fails and no records are returned. A zero
// timeout fails at once unless there is nothing to wait for.
func Monitor(ctx context.Context, reader PoolReader, ids []string, cfg MonitorConfig) ([]records.TxRecord, error) {
	timeout := cfg.Timeout
	if timeout < 0 {
		return nil, fmt.Errorf("invalid monitor timeout %s", timeout)
	}
	log.Info("Waiting for transactions", "count", len(ids), "timeout", timeout)
	if len(ids) == 0 {
		return []records.TxRecord{}, nil
	}
	logPoolStatus(ctx, reader)

	remaining := append([]string(nil), ids...)
	result := make([]records.TxRecord, 0, len(ids))
	limiter := wait.NewLimiter(cfg.PollRate)

	err := wait.Poll(ctx, limiter, timeout, func(ctx context.Context) (bool, error) {
		for i, id := range remaining {
			if i > 0 {
				if err := wait.Pace(ctx, limiter); err != nil {
					return false, err
				}
			}
			status, err := reader.TxStatus(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				log.Trace("Pool query failed", "txid", id, "err", err)
				continue
			}
			if status == node.StatusPending || (cfg.AcceptMined && status == node.StatusMined) {
				result = append(result, records.TxRecord{TxID: id, TimestampMs: time.Now().UnixMilli()})
				remaining = append(remaining[:i], remaining[i+1:]...)
				log.Debug("Transaction seen", "txid", id, "status", status, "left", len(remaining))
				return len(remaining) == 0, nil
			}
		}
		return len(remaining) == 0, nil
	})
	if errors.Is(err, wait.ErrTimeoutReached) {
		log.Warn("Timeout passed, quitting", "timeout", timeout, "seen", len(result), "missing", len(remaining))
		return nil, fmt.Errorf("timeout: %s passed, %d of %d transactions not seen: %w",
			timeout, len(remaining), len(ids), err)
	}
	if err != nil {
		return nil, err
	}

	logPoolStatus(ctx, reader)
	return result, nil
}

func logPoolStatus(ctx context.Context, reader PoolReader) {
	ps, ok := reader.(poolStatusReader)
	if !ok {
		return
	}
	pending, queued, err := ps.PoolStatus(ctx)
	if err != nil {
		log.Debug("Pool status unavailable", "err", err)
		return
	}
	log.Info("Pool status", "pending", pending, "queued", queued)
}
