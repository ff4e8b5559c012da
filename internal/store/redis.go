package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/photohunt/internal/hunt"
)

// RedisStore keeps sessions as JSON strings and relies on WATCH/MULTI for
// compare-and-swap. Two auxiliary keys per (user, scenario) hold the id of
// the active session and the number of completed runs.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "photohunt"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

func (r *RedisStore) activeKey(userID, scenarioID string) string {
	return fmt.Sprintf("%s:active:%s:%s", r.prefix, userID, scenarioID)
}

func (r *RedisStore) completedKey(userID, scenarioID string) string {
	return fmt.Sprintf("%s:completed:%s:%s", r.prefix, userID, scenarioID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) load(ctx context.Context, c getter, id string) (hunt.GameSession, error) {
	data, err := c.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return hunt.GameSession{}, ErrNotFound
	}
	if err != nil {
		return hunt.GameSession{}, err
	}
	var s hunt.GameSession
	if err := json.Unmarshal(data, &s); err != nil {
		return hunt.GameSession{}, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return s, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (hunt.GameSession, error) {
	return r.load(ctx, r.client, id)
}

// activeVia resolves the active pointer. A pointer to a session that is no
// longer in progress is treated as absent.
func (r *RedisStore) activeVia(ctx context.Context, c getter, userID, scenarioID string) (hunt.GameSession, bool, error) {
	id, err := c.Get(ctx, r.activeKey(userID, scenarioID)).Result()
	if errors.Is(err, redis.Nil) {
		return hunt.GameSession{}, false, nil
	}
	if err != nil {
		return hunt.GameSession{}, false, err
	}

	s, err := r.load(ctx, c, id)
	if errors.Is(err, ErrNotFound) {
		return hunt.GameSession{}, false, nil
	}
	if err != nil {
		return hunt.GameSession{}, false, err
	}
	if s.Status != hunt.SessionInProgress {
		return hunt.GameSession{}, false, nil
	}
	if s.UserID != userID || s.ScenarioID != scenarioID {
		return hunt.GameSession{}, false, fmt.Errorf("%w: pointer %s names session %s", ErrIntegrity, r.activeKey(userID, scenarioID), id)
	}
	return s, true, nil
}

func (r *RedisStore) FindActive(ctx context.Context, userID, scenarioID string) (hunt.GameSession, bool, error) {
	return r.activeVia(ctx, r.client, userID, scenarioID)
}

func (r *RedisStore) Create(ctx context.Context, sess hunt.GameSession) (hunt.GameSession, error) {
	sess.Version = 1
	data, err := json.Marshal(sess)
	if err != nil {
		return hunt.GameSession{}, err
	}

	activeKey := r.activeKey(sess.UserID, sess.ScenarioID)
	sessionKey := r.sessionKey(sess.ID)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		if _, ok, err := r.activeVia(ctx, tx, sess.UserID, sess.ScenarioID); err != nil {
			return err
		} else if ok {
			return ErrAlreadyExists
		}
		n, err := tx.Exists(ctx, sessionKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyExists
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, sessionKey, data, 0)
			p.Set(ctx, activeKey, sess.ID, 0)
			return nil
		})
		return err
	}, activeKey, sessionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return hunt.GameSession{}, ErrConflict
	}
	if err != nil {
		return hunt.GameSession{}, err
	}
	return sess, nil
}

func (r *RedisStore) AtomicUpdate(ctx context.Context, id string, fn Mutator) (hunt.GameSession, error) {
	sessionKey := r.sessionKey(id)

	var next hunt.GameSession
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}

		next, err = apply(cur, fn)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}

		finished := becameCompleted(cur, next)
		activeKey := r.activeKey(cur.UserID, cur.ScenarioID)
		var clearActive bool
		if finished {
			if err := tx.Watch(ctx, activeKey).Err(); err != nil {
				return err
			}
			pointer, err := tx.Get(ctx, activeKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			clearActive = pointer == id
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, sessionKey, data, 0)
			if finished {
				p.Incr(ctx, r.completedKey(cur.UserID, cur.ScenarioID))
			}
			if clearActive {
				p.Del(ctx, activeKey)
			}
			return nil
		})
		return err
	}, sessionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return hunt.GameSession{}, ErrConflict
	}
	if err != nil {
		return hunt.GameSession{}, err
	}
	return next, nil
}

func (r *RedisStore) CountCompleted(ctx context.Context, userID, scenarioID string) (int, error) {
	n, err := r.client.Get(ctx, r.completedKey(userID, scenarioID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

var _ Store = (*RedisStore)(nil)
