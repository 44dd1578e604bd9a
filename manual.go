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
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/moebot-io/moebot/internal/notification"
	"github.com/moebot-io/moebot/model"
)

const manualPollTimeoutSec = 30

// ListenManualIntake long-polls the bot for operator messages and relays any
// attached photo through the direct delivery path. Runs until the context is
// canceled.
func (m *Moebot) ListenManualIntake(ctx context.Context) error {
	logrus.Info("manual intake listener started")
	var offset int64
	for {
		updates, err := m.telegram.GetUpdates(ctx, offset, manualPollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logrus.Errorf("manual intake poll failed: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for i := range updates {
			if updates[i].UpdateID >= offset {
				offset = updates[i].UpdateID + 1
			}
			m.handleInbound(ctx, updates[i].Message)
		}
	}
}

// handleInbound relays a single operator message. Messages without a photo
// are ignored; everything else is acknowledged one way or the other so the
// operator is never left guessing.
func (m *Moebot) handleInbound(ctx context.Context, msg *TelegramMessage) {
	if msg == nil || len(msg.Photo) == 0 {
		return
	}
	if msg.Chat.ID == m.cnf.Telegram.ChannelID {
		// The bot's own channel posts come back through getUpdates.
		return
	}

	photo := msg.Photo[len(msg.Photo)-1]
	payload, err := m.telegram.DownloadPhoto(ctx, photo.FileID)
	if err != nil {
		notification.NotifyError(errors.Wrap(err, "manual intake download failed"))
		m.acknowledge(ctx, msg.Chat.ID, "Could not fetch that image, please try again.")
		return
	}

	asset := &model.Asset{
		SourceID:   strconv.FormatInt(msg.MessageID, 10),
		SourceName: model.SourceManual,
		Payload:    payload,
		Tags:       strings.Fields(msg.Caption),
		Author:     msg.From.Username,
	}

	record, err := m.DeliverDirect(ctx, asset)
	if err != nil {
		notification.NotifyError(err)
		m.acknowledge(ctx, msg.Chat.ID, "Delivery failed, the image was not posted.")
		return
	}
	logrus.Infof("manual intake delivered %s", record.CompositeID)
	m.acknowledge(ctx, msg.Chat.ID, "Posted as "+record.CompositeID+".")
}

func (m *Moebot) acknowledge(ctx context.Context, chatID int64, text string) {
	if err := m.telegram.SendMessage(ctx, chatID, text); err != nil {
		logrus.Errorf("manual intake acknowledgement failed: %v", err)
	}
}
