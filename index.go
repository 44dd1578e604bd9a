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
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/moebot-io/moebot/config"
	"github.com/moebot-io/moebot/internal/request"
	"github.com/moebot-io/moebot/model"
)

// MetadataIndex is the queryable record of everything delivered. The insert
// is ignore-on-conflict keyed by composite ID, so it is safe to retry and
// safe to race: at most one record per ID ever exists.
type MetadataIndex interface {
	InsertRecord(ctx context.Context, record model.DeliveryRecord) error
}

// insertImageSQL is the D1 statement shape. INSERT OR IGNORE enforces the
// one-record-per-composite-ID invariant on the database side, not ours.
const insertImageSQL = "INSERT OR IGNORE INTO images (id, file_name, caption, tags, created_at) VALUES (?, ?, ?, ?, ?)"

const defaultCloudflareAPI = "https://api.cloudflare.com"

// D1Index implements MetadataIndex on Cloudflare D1's HTTP query API.
type D1Index struct {
	endpoint   string
	accountID  string
	apiToken   string
	databaseID string
	maxRetries uint64
}

// NewD1Index creates an index client from configuration.
func NewD1Index(cnf *config.Configuration) *D1Index {
	return &D1Index{
		endpoint:   defaultCloudflareAPI,
		accountID:  cnf.Cloudflare.AccountID,
		apiToken:   cnf.Cloudflare.APIToken,
		databaseID: cnf.D1.DatabaseID,
		maxRetries: 3,
	}
}

type d1Query struct {
	SQL    string        `json:"sql"`
	Params []interface{} `json:"params"`
}

// InsertRecord writes the delivery record, retrying transient failures with
// exponential backoff. The statement is idempotent, so a retry after an
// ambiguous failure cannot create a duplicate.
func (d *D1Index) InsertRecord(ctx context.Context, record model.DeliveryRecord) error {
	query := d1Query{
		SQL: insertImageSQL,
		Params: []interface{}{
			record.CompositeID,
			record.FileName,
			record.Caption,
			record.Tags,
			record.CreatedAt,
		},
	}

	operation := func() error {
		return d.execute(ctx, query)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.maxRetries), ctx)
	return backoff.Retry(operation, policy)
}

func (d *D1Index) execute(ctx context.Context, query d1Query) error {
	payload, err := request.ToJsonReq(&query)
	if err != nil {
		return backoff.Permanent(err)
	}

	url := fmt.Sprintf("%s/client/v4/accounts/%s/d1/database/%s/query", d.endpoint, d.accountID, d.databaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiToken)
	req.Header.Set("Content-Type", "application/json")

	body, status, err := request.CallRaw(req)
	if err != nil {
		return errors.Wrap(err, "metadata index write failed")
	}
	if status != http.StatusOK {
		err := fmt.Errorf("metadata index write failed: status %d: %s", status, truncate(body, 200))
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// NewRecord derives the durable trace of a delivered asset.
func NewRecord(asset *model.Asset, channelReference string) model.DeliveryRecord {
	return model.DeliveryRecord{
		CompositeID:      asset.CompositeID(),
		ChannelReference: channelReference,
		FileName:         asset.FileName(),
		Caption:          asset.Caption(),
		Tags:             asset.TagString(),
		CreatedAt:        time.Now().Unix(),
	}
}
