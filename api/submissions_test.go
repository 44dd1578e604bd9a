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
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moebot-io/moebot/config"
	"github.com/moebot-io/moebot/model"
)

type fakePipeline struct {
	fail      bool
	delivered []*model.Asset
	seen      int
}

func (f *fakePipeline) DeliverDirect(_ context.Context, asset *model.Asset) (*model.DeliveryRecord, error) {
	if f.fail {
		return nil, errors.New("telegram: status 502")
	}
	f.delivered = append(f.delivered, asset)
	return &model.DeliveryRecord{
		CompositeID:      asset.CompositeID(),
		ChannelReference: "AgAClarge",
		FileName:         asset.FileName(),
		Caption:          asset.Caption(),
		Tags:             asset.TagString(),
		CreatedAt:        1735689600,
	}, nil
}

func (f *fakePipeline) DedupSize() int { return f.seen }

func newTestRouter(t *testing.T, pipeline *fakePipeline, secretKey string) http.Handler {
	t.Helper()
	cnf := &config.Configuration{}
	cnf.Server.SecretKey = secretKey
	cnf.Server.Secure = secretKey != ""
	config.MockConfig(cnf)
	return NewAPI(pipeline).Router()
}

func submissionBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "upload.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestCreateSubmission(t *testing.T) {
	pipeline := &fakePipeline{}
	router := newTestRouter(t, pipeline, "")

	body, contentType := submissionBody(t, map[string]string{"tags": "cat cute", "author": "alice"}, []byte("jpeg-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/submissions", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	require.Len(t, pipeline.delivered, 1)
	asset := pipeline.delivered[0]
	assert.Equal(t, model.SourceManual, asset.SourceName)
	assert.NotEmpty(t, asset.SourceID)
	assert.Equal(t, []string{"cat", "cute"}, asset.Tags)
	assert.Equal(t, "alice", asset.Author)
	assert.Equal(t, []byte("jpeg-bytes"), asset.Payload)

	var record model.DeliveryRecord
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &record))
	assert.Equal(t, asset.CompositeID(), record.CompositeID)
}

func TestCreateSubmissionRequiresImage(t *testing.T) {
	pipeline := &fakePipeline{}
	router := newTestRouter(t, pipeline, "")

	body, contentType := submissionBody(t, map[string]string{"tags": "cat"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/submissions", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, pipeline.delivered)
}

func TestCreateSubmissionDeliveryFailure(t *testing.T) {
	pipeline := &fakePipeline{fail: true}
	router := newTestRouter(t, pipeline, "")

	body, contentType := submissionBody(t, nil, []byte("jpeg-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/submissions", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestGetHistory(t *testing.T) {
	pipeline := &fakePipeline{seen: 42}
	router := newTestRouter(t, pipeline, "")

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"seen": 42}`, resp.Body.String())
}

func TestSecretKeyAuth(t *testing.T) {
	pipeline := &fakePipeline{}
	router := newTestRouter(t, pipeline, "moebot-secret")

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/history", nil)
	req.Header.Set("X-Moebot-Key", "moebot-secret")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}
