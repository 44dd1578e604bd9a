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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/moebot-io/moebot/internal/request"
)

// PhotoSize is one representation of a delivered photo. The Bot API returns
// representations ordered smallest to largest; the last one is the
// highest-fidelity reference.
type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// TelegramMessage is the subset of the Bot API message object moebot reads.
type TelegramMessage struct {
	MessageID int64       `json:"message_id"`
	Caption   string      `json:"caption"`
	Photo     []PhotoSize `json:"photo"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	From struct {
		Username string `json:"username"`
	} `json:"from"`
}

// TelegramUpdate is one long-poll update from getUpdates.
type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message"`
}

type telegramEnvelope struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// TelegramClient talks to the Telegram Bot API over plain HTTP. No SDK is
// used; the surface moebot needs is four methods.
type TelegramClient struct {
	endpoint string
	token    string
}

// NewTelegramClient creates a client for the given API endpoint (normally
// https://api.telegram.org) and bot token.
func NewTelegramClient(endpoint, token string) *TelegramClient {
	return &TelegramClient{endpoint: endpoint, token: token}
}

func (t *TelegramClient) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.endpoint, t.token, method)
}

func (t *TelegramClient) call(req *http.Request, result interface{}) error {
	body, status, err := request.CallRaw(req)
	if err != nil {
		return errors.Wrap(err, "telegram request failed")
	}

	var envelope telegramEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.Wrap(err, "telegram response decode failed")
	}
	if !envelope.OK {
		return fmt.Errorf("telegram API error (status %d): %s", status, envelope.Description)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return errors.Wrap(err, "telegram result decode failed")
		}
	}
	return nil
}

// SendPhoto uploads the payload to the given chat with a caption and
// returns the photo representations Telegram produced for it.
func (t *TelegramClient) SendPhoto(ctx context.Context, chatID int64, payload []byte, fileName, caption string) ([]PhotoSize, error) {
	fields := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"caption": caption,
	}
	body, contentType, err := request.MultipartForm(fields, "photo", fileName, payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendPhoto"), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var message TelegramMessage
	if err := t.call(req, &message); err != nil {
		return nil, err
	}
	if len(message.Photo) == 0 {
		return nil, fmt.Errorf("telegram returned no photo representations")
	}
	return message.Photo, nil
}

// SendMessage posts a plain text message, used to acknowledge manual
// submissions.
func (t *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := request.ToJsonReq(map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendMessage"), payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.call(req, nil)
}

// GetUpdates long-polls for inbound updates after the given offset.
func (t *TelegramClient) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]TelegramUpdate, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(timeoutSec))
	params.Set("allowed_updates", `["message"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.methodURL("getUpdates")+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var updates []TelegramUpdate
	if err := t.call(req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// DownloadPhoto resolves a file reference via getFile and downloads its
// bytes. Used by manual intake to pull an inbound image back out of
// Telegram.
func (t *TelegramClient) DownloadPhoto(ctx context.Context, fileID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.methodURL("getFile")+"?file_id="+url.QueryEscape(fileID), nil)
	if err != nil {
		return nil, err
	}

	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := t.call(req, &file); err != nil {
		return nil, err
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("telegram getFile returned no file_path for %s", fileID)
	}

	fileURL := fmt.Sprintf("%s/file/bot%s/%s", t.endpoint, t.token, file.FilePath)
	return request.GetBody(ctx, fileURL, nil)
}
