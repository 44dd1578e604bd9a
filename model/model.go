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
package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SourceManual tags assets injected by a human rather than a connector.
// Manual assets bypass the dedup store entirely.
const SourceManual = "manual"

// Asset is one candidate image plus its metadata, flowing through the
// delivery pipeline. It is constructed by a source connector (or by manual
// intake), consumed exactly once, and never persisted itself — only the
// DeliveryRecord derived from it is.
type Asset struct {
	SourceID   string   // stable identifier within the source namespace
	SourceName string   // which connector produced it, e.g. "yande", "pixiv"
	Payload    []byte   // raw image bytes, opaque to the pipeline
	Tags       []string // ordered free-text labels
	Author     string   // optional artist/author name
}

// CompositeID returns the globally unique, source-qualified key for the
// asset: sourceName + "_" + sourceId.
func (a *Asset) CompositeID() string {
	return fmt.Sprintf("%s_%s", a.SourceName, a.SourceID)
}

// FileName returns the durable object key and metadata file name for the
// asset. Keys must be unique per item; the object store overwrites on key
// collision.
func (a *Asset) FileName() string {
	return a.CompositeID() + ".jpg"
}

// UploadName returns the cosmetic file name attached to the messaging-sink
// upload.
func (a *Asset) UploadName() string {
	return a.SourceName + ".jpg"
}

// Caption renders the human-readable summary posted alongside the image.
// Tags are space-split before hashtagging, so ["a", "b c"] expands to
// "#a #b #c".
func (a *Asset) Caption() string {
	var b strings.Builder
	b.WriteString("ID: ")
	b.WriteString(a.CompositeID())
	if len(a.Tags) > 0 {
		b.WriteString("\nTags: ")
		b.WriteString(HashTags(a.Tags))
	}
	if a.Author != "" {
		b.WriteString("\nBy: ")
		b.WriteString(a.Author)
	}
	return b.String()
}

// TagString joins the asset's tags with single spaces, the form the metadata
// index stores.
func (a *Asset) TagString() string {
	return strings.Join(a.Tags, " ")
}

// HashTags expands a tag list into hashtag tokens. Each tag is split on
// whitespace first, so multi-word tags become multiple tokens.
func HashTags(tags []string) string {
	var tokens []string
	for _, tag := range tags {
		for _, word := range strings.Fields(tag) {
			tokens = append(tokens, "#"+word)
		}
	}
	return strings.Join(tokens, " ")
}

// DeliveryRecord is the durable trace of a successfully delivered asset. At
// most one record per CompositeID ever reaches the metadata index; the
// insert is ignore-on-conflict, so re-delivery attempts are harmless there.
type DeliveryRecord struct {
	CompositeID      string `json:"id"`
	ChannelReference string `json:"channel_reference"` // messaging-sink handle for the delivered blob
	FileName         string `json:"file_name"`
	Caption          string `json:"caption"`
	Tags             string `json:"tags"`
	CreatedAt        int64  `json:"created_at"` // unix seconds
}

// GenerateSubmissionID creates a synthetic source identifier for assets that
// arrive through the HTTP intake surface, which has no message sequence
// number to borrow.
func GenerateSubmissionID() string {
	id := uuid.New()
	return strings.Split(id.String(), "-")[0]
}
