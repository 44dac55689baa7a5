// Package persistence is the optional read-only collaborator that
// supplies the executed-OBs feedback mapping: what prior nights
// already billed against each OB, used to seed program budgets and skip
// OBs already marked done. Shares the cache package's Redis idiom
// (connect-then-ping, pooled client) but read-only and tolerant of the
// store being absent -- a queue run must still produce a schedule on a
// night nobody has recorded any history for.
package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"

	"github.com/naojsoft/qplan-core/log"
	"github.com/naojsoft/qplan-core/scheduler"
)

var logger = log.Logger()

// Store is a Redis-backed read-only view of executed OBs.
type Store struct {
	client *redis.Client
}

// Connect dials addr, retrying the initial ping with exponential backoff
// up to maxElapsed. If the store never becomes
// reachable, Connect returns a nil *Store and a nil error: callers use
// FetchExecuted on a nil *Store to get an empty mapping rather than
// threading an extra "is persistence available" check through the
// driver.
func Connect(ctx context.Context, addr, password string, db int, maxElapsed time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed

	err := backoff.Retry(func() error {
		return client.Ping(ctx).Err()
	}, backoff.WithContext(bo, ctx))

	if err != nil {
		logger.Warn("persistence store unreachable, running without executed-OB history", "addr", addr, "error", err)
		client.Close()
		return nil, nil
	}

	logger.Info("persistence store connected", "addr", addr, "db", db)
	return &Store{client: client}, nil
}

// executedRecord is the JSON shape stored per hash field; keys are
// "<proposal>\x00<ob_id>".
type executedRecord struct {
	AcctTimeSec float64 `json:"acct_time_sec"`
	IQA         string  `json:"iqa"`
	FQA         string  `json:"fqa"`
}

// executedKey is the Redis hash all executed-OB records live under.
const executedKey = "qplan:executed"

// FetchExecuted returns every recorded executed OB. A nil Store (no
// reachable Redis at startup) or any read error yields an empty mapping,
// never an error -- the planner must function with this
// collaborator absent.
func (s *Store) FetchExecuted(ctx context.Context) []scheduler.ExecutedOB {
	if s == nil {
		return nil
	}

	raw, err := s.client.HGetAll(ctx, executedKey).Result()
	if err != nil {
		logger.Error("failed to read executed-OB history, proceeding without it", "error", err)
		return nil
	}

	out := make([]scheduler.ExecutedOB, 0, len(raw))
	for field, val := range raw {
		proposal, obCode, ok := splitField(field)
		if !ok {
			logger.Warn("malformed executed-OB key, skipping", "field", field)
			continue
		}
		var rec executedRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			logger.Warn("malformed executed-OB record, skipping", "field", field, "error", err)
			continue
		}
		out = append(out, scheduler.ExecutedOB{
			Proposal: proposal,
			OBCode:   obCode,
			AcctTime: time.Duration(rec.AcctTimeSec * float64(time.Second)),
			IQA:      rec.IQA,
			FQA:      rec.FQA,
		})
	}
	return out
}

// RecordExecuted writes back what a completed night actually billed,
// so the next run's FetchExecuted reflects it. Errors are logged and
// swallowed for the same reason FetchExecuted never fails its caller:
// a planning run must not abort because its own bookkeeping write
// failed.
func (s *Store) RecordExecuted(ctx context.Context, e scheduler.ExecutedOB) {
	if s == nil {
		return
	}
	field := e.Proposal + "\x00" + e.OBCode
	data, err := json.Marshal(executedRecord{
		AcctTimeSec: e.AcctTime.Seconds(),
		IQA:         e.IQA,
		FQA:         e.FQA,
	})
	if err != nil {
		logger.Error("failed to marshal executed-OB record", "error", err)
		return
	}
	if err := s.client.HSet(ctx, executedKey, field, data).Err(); err != nil {
		logger.Error("failed to record executed OB", "error", err)
	}
}

// Close releases the underlying connection. Safe to call on a nil Store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

func splitField(field string) (proposal, obCode string, ok bool) {
	for i := 0; i+1 <= len(field); i++ {
		if field[i] == 0 {
			return field[:i], field[i+1:], true
		}
	}
	return "", "", false
}
