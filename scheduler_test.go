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
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moebot-io/moebot/dedup"
	"github.com/moebot-io/moebot/model"
	"github.com/moebot-io/moebot/sources"
)

type fakeSource struct {
	name   string
	assets []model.Asset
	err    error
	calls  int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) ListCandidates(_ context.Context, limit int) ([]model.Asset, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.assets) > limit {
		return f.assets[:limit], nil
	}
	return f.assets, nil
}

type countingRemote struct {
	mu        sync.Mutex
	stored    []string
	loadCalls int
	saveCalls int
}

func (r *countingRemote) Load(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadCalls++
	return append([]string(nil), r.stored...), nil
}

func (r *countingRemote) Save(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	r.stored = append([]string(nil), ids...)
	return nil
}

func sourceAssets(name string, ids ...string) []model.Asset {
	var assets []model.Asset
	for _, id := range ids {
		assets = append(assets, model.Asset{SourceID: id, SourceName: name, Payload: []byte("jpeg-bytes")})
	}
	return assets
}

func TestRunCycleSkipsSeen(t *testing.T) {
	m, messaging, _, index := newTestMoebot(t)
	m.sources = []sources.Source{&fakeSource{name: "yande", assets: sourceAssets("yande", "41", "42")}}
	m.dedup.MarkSeen("yande_41")

	m.RunCycle(context.Background())

	assert.Equal(t, 1, messaging.calls)
	require.Len(t, index.records, 1)
	assert.Equal(t, "yande_42", index.records[0].CompositeID)
}

func TestRunCycleSourceFailureContained(t *testing.T) {
	m, _, _, index := newTestMoebot(t)
	m.sources = []sources.Source{
		&fakeSource{name: "pixiv", err: errors.New("pixiv: status 403")},
		&fakeSource{name: "yande", assets: sourceAssets("yande", "42")},
	}

	m.RunCycle(context.Background())

	require.Len(t, index.records, 1, "healthy sources still run after a connector failure")
	assert.Equal(t, "yande_42", index.records[0].CompositeID)
}

func TestRunCycleFlushGating(t *testing.T) {
	m, _, _, _ := newTestMoebot(t)
	remote := &countingRemote{}
	m.dedup = dedup.NewStore(remote, 0)
	src := &fakeSource{name: "yande", assets: sourceAssets("yande", "42")}
	m.sources = []sources.Source{src}

	m.RunCycle(context.Background())
	assert.Equal(t, 1, remote.saveCalls)
	assert.Equal(t, []string{"yande_42"}, remote.stored)
	assert.False(t, m.dedup.Dirty())

	// Same candidate again: nothing new delivered, nothing to flush.
	m.RunCycle(context.Background())
	assert.Equal(t, 1, remote.saveCalls, "a clean cycle must not touch the remote")
}

func TestRunCycleDeliveryFailureRetriedNextCycle(t *testing.T) {
	m, messaging, _, index := newTestMoebot(t)
	m.sources = []sources.Source{&fakeSource{name: "yande", assets: sourceAssets("yande", "42")}}

	messaging.fail = true
	m.RunCycle(context.Background())
	assert.Empty(t, index.records)
	assert.False(t, m.dedup.Contains("yande_42"), "a failed send must not poison the dedup state")

	messaging.fail = false
	m.RunCycle(context.Background())
	require.Len(t, index.records, 1)
	assert.Equal(t, "yande_42", index.records[0].CompositeID)
}

func TestRunCycleRejectsOverlap(t *testing.T) {
	m, messaging, _, _ := newTestMoebot(t)
	m.sources = []sources.Source{&fakeSource{name: "yande", assets: sourceAssets("yande", "42")}}

	m.cycleGuard.Lock()
	m.RunCycle(context.Background())
	m.cycleGuard.Unlock()

	assert.Zero(t, messaging.calls, "an overlapping trigger is rejected, not queued")
}

// End to end over HTTP: a yande listing flows through the real Telegram
// client into the store and index.
func TestRunCycleEndToEnd(t *testing.T) {
	m, _, store, index := newTestMoebot(t)
	m.messaging = newTestTelegram(t)
	m.sources = []sources.Source{sources.NewYandeSource("https://yande.test", "order:random")}

	httpmock.RegisterResponder(http.MethodGet, "https://yande.test/post.json",
		httpmock.NewStringResponder(http.StatusOK,
			`[{"id": 42, "sample_url": "https://files.yande.test/sample/42.jpg", "tags": "cat cute"}]`))
	httpmock.RegisterResponder(http.MethodGet, "https://files.yande.test/sample/42.jpg",
		httpmock.NewStringResponder(http.StatusOK, "jpeg-bytes"))
	httpmock.RegisterResponder(http.MethodPost, testBotEndpoint+"/bot123:token/sendPhoto",
		httpmock.NewStringResponder(http.StatusOK, `{
			"ok": true,
			"result": {"message_id": 9, "photo": [
				{"file_id": "AgACsmall", "width": 320, "height": 180},
				{"file_id": "AgAClarge", "width": 1280, "height": 720}
			]}
		}`))

	m.RunCycle(context.Background())

	require.Len(t, index.records, 1)
	record := index.records[0]
	assert.Equal(t, "yande_42", record.CompositeID)
	assert.Equal(t, "AgAClarge", record.ChannelReference)
	assert.Equal(t, "cat cute", record.Tags)
	assert.Equal(t, []byte("jpeg-bytes"), store.objects["yande_42.jpg"])
	assert.True(t, m.dedup.Contains("yande_42"))
}

func TestRunCycleHonorsLimit(t *testing.T) {
	m, messaging, _, _ := newTestMoebot(t)
	m.cnf.Sources.Limit = 2
	m.sources = []sources.Source{&fakeSource{name: "yande", assets: sourceAssets("yande", "1", "2", "3", "4")}}

	m.RunCycle(context.Background())

	assert.Equal(t, 2, messaging.calls)
}
