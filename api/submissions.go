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
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/moebot-io/moebot/api/model"
)

// maxSubmissionBytes caps an uploaded image at Telegram's photo limit.
const maxSubmissionBytes = 10 << 20

// CreateSubmission relays an operator-uploaded image straight through the
// delivery pipeline, bypassing dedup tracking.
func (a Api) CreateSubmission(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "an image file part is required"})
		return
	}
	defer func() {
		_ = file.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(file, maxSubmissionBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "the image file part is empty"})
		return
	}
	if len(payload) > maxSubmissionBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "the image exceeds the 10MB limit"})
		return
	}

	req := model2.SubmissionRequest{
		Tags:   c.PostForm("tags"),
		Author: c.PostForm("author"),
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := a.pipeline.DeliverDirect(c.Request.Context(), req.ToAsset(payload))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, record)
}

// GetHistory reports the dedup store's current size.
func (a Api) GetHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"seen": a.pipeline.DedupSize()})
}
