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
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/moebot-io/moebot/model"
)

// SubmissionRequest is the form surface of POST /submissions. The image
// itself travels as a multipart file part and is checked in the handler.
type SubmissionRequest struct {
	Tags   string `form:"tags" json:"tags"`
	Author string `form:"author" json:"author"`
}

func (s SubmissionRequest) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Tags, validation.Length(0, 512)),
		validation.Field(&s.Author, validation.Length(0, 128)),
	)
}

// ToAsset assembles a pipeline asset under a synthetic submission ID so
// operator uploads can never collide with source identifiers.
func (s SubmissionRequest) ToAsset(payload []byte) *model.Asset {
	return &model.Asset{
		SourceID:   model.GenerateSubmissionID(),
		SourceName: model.SourceManual,
		Payload:    payload,
		Tags:       strings.Fields(s.Tags),
		Author:     s.Author,
	}
}
