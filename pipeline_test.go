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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moebot-io/moebot/config"
	"github.com/moebot-io/moebot/dedup"
	"github.com/moebot-io/moebot/model"
)

type fakeMessaging struct {
	fail         bool
	calls        int
	lastChatID   int64
	lastFileName string
	lastCaption  string
}

func (f *fakeMessaging) SendPhoto(_ context.Context, chatID int64, _ []byte, fileName, caption string) ([]PhotoSize, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("telegram: status 502")
	}
	f.lastChatID = chatID
	f.lastFileName = fileName
	f.lastCaption = caption
	return []PhotoSize{
		{FileID: "AgACsmall", Width: 320, Height: 180},
		{FileID: "AgAClarge", Width: 1280, Height: 720},
	}, nil
}

type fakeStore struct {
	fail    bool
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeStore) Put(_ context.Context, key string, payload []byte, contentType string) error {
	if f.fail {
		return errors.New("r2: access denied")
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
		f.types = make(map[string]string)
	}
	f.objects[key] = payload
	f.types[key] = contentType
	return nil
}

type fakeIndex struct {
	fail    bool
	records []model.DeliveryRecord
}

func (f *fakeIndex) InsertRecord(_ context.Context, record model.DeliveryRecord) error {
	if f.fail {
		return errors.New("d1: status 500")
	}
	f.records = append(f.records, record)
	return nil
}

func newTestMoebot(t *testing.T) (*Moebot, *fakeMessaging, *fakeStore, *fakeIndex) {
	t.Helper()
	cnf := &config.Configuration{}
	cnf.Telegram.ChannelID = -1001234
	cnf.Sources.Limit = 5
	config.MockConfig(cnf)

	messaging := &fakeMessaging{}
	store := &fakeStore{}
	index := &fakeIndex{}
	m := &Moebot{
		cnf:       cnf,
		messaging: messaging,
		store:     store,
		index:     index,
		dedup:     dedup.NewStore(nil, 0),
	}
	return m, messaging, store, index
}

func yandeAsset() *model.Asset {
	return &model.Asset{
		SourceID:   "42",
		SourceName: "yande",
		Payload:    []byte("jpeg-bytes"),
		Tags:       []string{"cat", "cute"},
	}
}

func TestDeliver(t *testing.T) {
	m, messaging, store, index := newTestMoebot(t)

	record, err := m.Deliver(context.Background(), yandeAsset())
	require.NoError(t, err)

	assert.Equal(t, "yande_42", record.CompositeID)
	assert.Equal(t, "AgAClarge", record.ChannelReference, "reference must come from the largest representation")
	assert.Equal(t, "yande_42.jpg", record.FileName)
	assert.Equal(t, "cat cute", record.Tags)

	assert.Equal(t, int64(-1001234), messaging.lastChatID)
	assert.Equal(t, "yande.jpg", messaging.lastFileName)
	assert.Equal(t, "ID: yande_42\nTags: #cat #cute", messaging.lastCaption)

	assert.Equal(t, []byte("jpeg-bytes"), store.objects["yande_42.jpg"])
	assert.Equal(t, "image/jpeg", store.types["yande_42.jpg"])

	require.Len(t, index.records, 1)
	assert.Equal(t, *record, index.records[0])

	assert.True(t, m.dedup.Contains("yande_42"))
	assert.True(t, m.dedup.Dirty())
}

func TestDeliverSendFailureLeavesNoState(t *testing.T) {
	m, messaging, store, index := newTestMoebot(t)
	messaging.fail = true

	_, err := m.Deliver(context.Background(), yandeAsset())
	require.Error(t, err)

	assert.False(t, m.dedup.Contains("yande_42"))
	assert.False(t, m.dedup.Dirty())
	assert.Empty(t, store.objects)
	assert.Empty(t, index.records)
}

func TestDeliverStoreFailureDoesNotBlockIndex(t *testing.T) {
	m, _, store, index := newTestMoebot(t)
	store.fail = true

	record, err := m.Deliver(context.Background(), yandeAsset())
	require.NoError(t, err, "object store failure must not abort the asset")

	require.Len(t, index.records, 1)
	assert.Equal(t, record.CompositeID, index.records[0].CompositeID)
	assert.True(t, m.dedup.Contains("yande_42"))
}

func TestDeliverIndexFailureStillSucceeds(t *testing.T) {
	m, _, store, index := newTestMoebot(t)
	index.fail = true

	_, err := m.Deliver(context.Background(), yandeAsset())
	require.NoError(t, err)

	assert.Contains(t, store.objects, "yande_42.jpg")
	assert.True(t, m.dedup.Contains("yande_42"))
}

func TestDeliverDirectSkipsDedupMark(t *testing.T) {
	m, _, store, index := newTestMoebot(t)

	asset := &model.Asset{
		SourceID:   "77",
		SourceName: model.SourceManual,
		Payload:    []byte("jpeg-bytes"),
	}
	record, err := m.DeliverDirect(context.Background(), asset)
	require.NoError(t, err)

	assert.Equal(t, "manual_77", record.CompositeID)
	assert.Contains(t, store.objects, "manual_77.jpg")
	require.Len(t, index.records, 1)
	assert.False(t, m.dedup.Contains("manual_77"), "direct deliveries are never tracked")
	assert.False(t, m.dedup.Dirty())
}
