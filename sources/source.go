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

// Package sources holds the connectors that produce candidate assets for
// the delivery pipeline. Each connector wraps one external image service
// and normalizes its listings into model.Asset values.
package sources

import (
	"context"

	"github.com/moebot-io/moebot/model"
)

// Source is a connector over one external image service.
//
// ListCandidates returns up to limit candidates in the source's own order.
// A connector error means "zero candidates this cycle" to the caller; it
// must never abort the scheduler.
type Source interface {
	Name() string
	ListCandidates(ctx context.Context, limit int) ([]model.Asset, error)
}
