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
package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/moebot-io/moebot/internal/request"
	"github.com/moebot-io/moebot/model"
)

const yandeName = "yande"

// YandeSource is the tag-query connector: a single post.json call returns
// up to limit candidates in the order the source chooses for the query
// expression. No pagination, no cursor.
type YandeSource struct {
	endpoint string
	tags     string
}

// NewYandeSource creates a connector against the given endpoint with a tag
// query expression (e.g. "order:random").
func NewYandeSource(endpoint, tags string) *YandeSource {
	return &YandeSource{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		tags:     tags,
	}
}

func (y *YandeSource) Name() string {
	return yandeName
}

type yandePost struct {
	ID        int64  `json:"id"`
	SampleURL string `json:"sample_url"`
	FileURL   string `json:"file_url"`
	Tags      string `json:"tags"`
	Author    string `json:"author"`
}

// ListCandidates queries post.json and downloads each candidate's image.
// Items whose download fails are skipped, not fatal to the listing.
func (y *YandeSource) ListCandidates(ctx context.Context, limit int) ([]model.Asset, error) {
	listURL := fmt.Sprintf("%s/post.json?limit=%d&tags=%s", y.endpoint, limit, url.QueryEscape(y.tags))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}

	var posts []yandePost
	resp, err := request.Call(req, &posts)
	if err != nil {
		return nil, errors.Wrap(err, "yande listing failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yande listing failed: status %d", resp.StatusCode)
	}

	var assets []model.Asset
	for _, post := range posts {
		imageURL := post.SampleURL
		if imageURL == "" {
			imageURL = post.FileURL
		}
		if imageURL == "" {
			continue
		}

		payload, err := request.GetBody(ctx, imageURL, nil)
		if err != nil {
			logrus.Warnf("yande: download failed for post %d: %v", post.ID, err)
			continue
		}

		assets = append(assets, model.Asset{
			SourceID:   strconv.FormatInt(post.ID, 10),
			SourceName: yandeName,
			Payload:    payload,
			Tags:       strings.Fields(post.Tags),
			Author:     post.Author,
		})
	}
	return assets, nil
}
