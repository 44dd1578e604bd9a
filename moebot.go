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
package moebot

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/moebot-io/moebot/config"
	"github.com/moebot-io/moebot/dedup"
	"github.com/moebot-io/moebot/internal/cache"
	redis_db "github.com/moebot-io/moebot/internal/redis-db"
	"github.com/moebot-io/moebot/sources"
)

// Moebot is the main struct for the application: the delivery pipeline and
// everything it fans out to.
type Moebot struct {
	cnf       *config.Configuration
	telegram  *TelegramClient
	messaging MessagingSink
	store     ObjectStore
	index     MetadataIndex
	dedup     *dedup.Store
	sources   []sources.Source

	// cycleGuard makes the no-overlap rule explicit: a cycle start while
	// one is in flight is rejected, never run concurrently.
	cycleGuard sync.Mutex
}

// NewMoebot initializes the pipeline from the loaded configuration: the
// three sinks, the dedup store with its remote backend, and the configured
// source connectors.
func NewMoebot() (*Moebot, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	telegram := NewTelegramClient(cnf.Telegram.APIEndpoint, cnf.Telegram.BotToken)

	store, err := NewR2Store(cnf)
	if err != nil {
		return nil, err
	}

	remote, err := newDedupRemote(cnf)
	if err != nil {
		return nil, err
	}

	srcs, err := newSources(cnf)
	if err != nil {
		return nil, err
	}

	return &Moebot{
		cnf:       cnf,
		telegram:  telegram,
		messaging: telegram,
		store:     store,
		index:     NewD1Index(cnf),
		dedup:     dedup.NewStore(remote, cnf.Dedup.MaxEntries),
		sources:   srcs,
	}, nil
}

// newDedupRemote picks the dedup backend: Redis when configured, else the
// HTTP history endpoint, else none (empty state on every restart).
func newDedupRemote(cnf *config.Configuration) (dedup.Remote, error) {
	if cnf.Redis.Dns != "" {
		client, err := redis_db.NewRedisClient([]string{cnf.Redis.Dns})
		if err != nil {
			return nil, err
		}
		return dedup.NewRedisRemote(client.Client()), nil
	}
	if cnf.History.Endpoint != "" {
		return dedup.NewHTTPRemote(cnf.History.Endpoint), nil
	}
	logrus.Warn("no dedup remote configured; seen state will not survive restarts")
	return nil, nil
}

func newSources(cnf *config.Configuration) ([]sources.Source, error) {
	var srcs []sources.Source
	if cnf.Sources.Yande.Enabled {
		srcs = append(srcs, sources.NewYandeSource(cnf.Sources.Yande.Endpoint, cnf.Sources.Yande.Tags))
	}
	if cnf.Sources.Pixiv.Enabled {
		tokens, err := cache.NewCache()
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, sources.NewPixivSource(cnf.Sources.Pixiv, tokens))
	}
	return srcs, nil
}

// Telegram exposes the bot client for surfaces outside the pipeline (the
// manual-intake listener and CLI commands).
func (m *Moebot) Telegram() *TelegramClient {
	return m.telegram
}

// DedupSize reports how many identifiers the store currently holds.
func (m *Moebot) DedupSize() int {
	return m.dedup.Len()
}
