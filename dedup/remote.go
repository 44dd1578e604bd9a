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
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/moebot-io/moebot/internal/request"
	"github.com/pkg/errors"
)

// HTTPRemote persists the identifier list on a small external key-value
// endpoint speaking a comma-separated wire format:
//
//	GET  {base}/api/get_history     → "id1,id2,..." (empty body = no history)
//	POST {base}/api/update_history  ← "id1,id2,..." (200 = success)
type HTTPRemote struct {
	endpoint string
}

// NewHTTPRemote creates a remote against the given base endpoint.
func NewHTTPRemote(endpoint string) *HTTPRemote {
	return &HTTPRemote{endpoint: strings.TrimSuffix(endpoint, "/")}
}

func (r *HTTPRemote) Load(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/api/get_history", nil)
	if err != nil {
		return nil, err
	}

	body, status, err := request.CallRaw(req)
	if err != nil {
		return nil, errors.Wrap(err, "history load failed")
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("history load failed: status %d", status)
	}

	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return nil, nil
	}
	return strings.Split(raw, ","), nil
}

func (r *HTTPRemote) Save(ctx context.Context, ids []string) error {
	payload := strings.Join(ids, ",")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/api/update_history", bytes.NewBufferString(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	_, status, err := request.CallRaw(req)
	if err != nil {
		return errors.Wrap(err, "history save failed")
	}
	if status != http.StatusOK {
		return fmt.Errorf("history save failed: status %d", status)
	}
	return nil
}
