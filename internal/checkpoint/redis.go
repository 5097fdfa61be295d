package checkpoint

/*
rxavail — resumable RDAP domain availability checker in Go
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces checkpoint keys.
const DefaultRedisPrefix = "rxavail:checkpoint:"

// RedisStore keeps each scope's record under one key. A single SET replaces
// the whole value, so readers never observe a partial record.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore connects to url (redis://...) and verifies the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreFromClient(rdb), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: DefaultRedisPrefix, now: time.Now}
}

// Key returns the Redis key of a scope.
func (s *RedisStore) Key(scope string) string {
	return s.prefix + scope
}

// Backend implements Store.
func (s *RedisStore) Backend() string { return "redis" }

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, scope string) (State, error) {
	data, err := s.rdb.Get(ctx, s.Key(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(s.now()), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read checkpoint %s: %w", s.Key(scope), err)
	}
	st, err := Decode(data)
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", s.Key(scope), err)
	}
	return st, nil
}

// Persist implements Store.
func (s *RedisStore) Persist(ctx context.Context, scope string, state *State) error {
	data, err := prepare(state, s.now())
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.Key(scope), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to persist checkpoint %s: %w", s.Key(scope), err)
	}
	return nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, scope string) error {
	if err := s.rdb.Del(ctx, s.Key(scope)).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", s.Key(scope), err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
