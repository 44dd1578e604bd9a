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

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/moebot-io/moebot/internal/notification"
	"github.com/moebot-io/moebot/model"
)

var pipelineTracer = otel.Tracer("moebot.pipeline")

// MessagingSink is the primary delivery channel. Its send is the gate for the
// whole pipeline: nothing else runs for an asset until the send succeeds.
type MessagingSink interface {
	SendPhoto(ctx context.Context, chatID int64, payload []byte, fileName, caption string) ([]PhotoSize, error)
}

// Deliver pushes one asset through the sinks in their fixed order: channel
// send, dedup mark, object store, metadata index. A send failure aborts the
// asset with no state recorded anywhere; failures after the mark are logged
// and contained so one sink cannot take the others down.
func (m *Moebot) Deliver(ctx context.Context, asset *model.Asset) (*model.DeliveryRecord, error) {
	return m.deliver(ctx, asset, true)
}

// DeliverDirect is the manual-intake path: same sinks, but the asset is not
// marked seen. Operator submissions carry synthetic identifiers that never
// collide with source ids, so tracking them would only grow the store.
func (m *Moebot) DeliverDirect(ctx context.Context, asset *model.Asset) (*model.DeliveryRecord, error) {
	return m.deliver(ctx, asset, false)
}

func (m *Moebot) deliver(ctx context.Context, asset *model.Asset, track bool) (*model.DeliveryRecord, error) {
	ctx, span := pipelineTracer.Start(ctx, "Delivering asset")
	defer span.End()
	span.SetAttributes(attribute.String("asset.id", asset.CompositeID()))

	photos, err := m.messaging.SendPhoto(ctx, m.cnf.Telegram.ChannelID, asset.Payload, asset.UploadName(), asset.Caption())
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "channel send failed for %s", asset.CompositeID())
	}
	// The API lists representations smallest-first; the last one is the
	// highest-fidelity copy and becomes the durable channel reference.
	reference := photos[len(photos)-1].FileID
	span.AddEvent("Sent to channel")

	// The mark goes in the moment the channel has the item. Losing a later
	// sink write is recoverable; sending the same image twice is not.
	if track {
		m.dedup.MarkSeen(asset.CompositeID())
	}

	record := NewRecord(asset, reference)

	if err := m.store.Put(ctx, record.FileName, asset.Payload, "image/jpeg"); err != nil {
		span.RecordError(err)
		notification.NotifyError(errors.Wrapf(err, "object store write failed for %s", record.FileName))
	}

	if err := m.index.InsertRecord(ctx, record); err != nil {
		// The channel already has the asset at this point; an index miss
		// leaves it undiscoverable by id until a manual backfill.
		span.RecordError(err)
		notification.NotifyError(errors.Wrapf(err, "index write failed for %s", record.CompositeID))
	}

	return &record, nil
}
