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
	"context"

	"github.com/gin-gonic/gin"

	"github.com/moebot-io/moebot/api/middleware"
	"github.com/moebot-io/moebot/config"
	"github.com/moebot-io/moebot/model"
)

// Pipeline is the slice of the delivery engine the ops API needs.
type Pipeline interface {
	DeliverDirect(ctx context.Context, asset *model.Asset) (*model.DeliveryRecord, error)
	DedupSize() int
}

type Api struct {
	pipeline Pipeline
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/submissions", a.CreateSubmission)
	router.GET("/history", a.GetHistory)
	return a.router
}

func NewAPI(p Pipeline) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{pipeline: p, router: r}
}
