/*
Copyright 2025 Moebot Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package dedup

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// historyKey holds the full identifier list as one comma-separated value,
// mirroring the HTTP remote's wire format.
const historyKey = "moebot:history"

// RedisRemote persists the identifier list in a Redis instance. It is an
// alternative to HTTPRemote for deployments that already run Redis.
type RedisRemote struct {
	client redis.UniversalClient
}

// NewRedisRemote creates a remote on top of an established Redis client.
func NewRedisRemote(client redis.UniversalClient) *RedisRemote {
	return &RedisRemote{client: client}
}

func (r *RedisRemote) Load(ctx context.Context) ([]string, error) {
	raw, err := r.client.Get(ctx, historyKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "history load failed")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	return strings.Split(raw, ","), nil
}

func (r *RedisRemote) Save(ctx context.Context, ids []string) error {
	err := r.client.Set(ctx, historyKey, strings.Join(ids, ","), 0).Err()
	return errors.Wrap(err, "history save failed")
}
