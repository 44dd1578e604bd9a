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
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/moebot-io/moebot/internal/notification"
)

var schedulerTracer = otel.Tracer("moebot.scheduler")

// Run drives the periodic fetch loop until the context is canceled. Seen
// state is pulled from the remote once at startup; a load failure is
// non-fatal and the loop starts from whatever is already in memory.
func (m *Moebot) Run(ctx context.Context) error {
	if err := m.dedup.LoadFromRemote(ctx); err != nil {
		logrus.Warningf("dedup history load failed, starting with in-memory state only: %v", err)
	} else {
		logrus.Infof("dedup history loaded: %d identifiers", m.dedup.Len())
	}

	interval := time.Duration(m.cnf.Sources.FetchIntervalSec) * time.Second
	logrus.Infof("scheduler started: %d source(s), interval %s", len(m.sources), interval)

	for {
		m.RunCycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// RunOnce performs a single fetch cycle including the history load, for
// one-shot CLI runs.
func (m *Moebot) RunOnce(ctx context.Context) {
	if err := m.dedup.LoadFromRemote(ctx); err != nil {
		logrus.Warningf("dedup history load failed, starting with in-memory state only: %v", err)
	}
	m.RunCycle(ctx)
}

// RunCycle executes one fetch round across all sources. Cycles never
// overlap: if one is still in flight, the new trigger is rejected outright
// rather than queued.
func (m *Moebot) RunCycle(ctx context.Context) {
	if !m.cycleGuard.TryLock() {
		logrus.Warning("fetch cycle still in flight, skipping this trigger")
		return
	}
	defer m.cycleGuard.Unlock()

	ctx, span := schedulerTracer.Start(ctx, "Fetch cycle")
	defer span.End()

	delivered := 0
	for _, src := range m.sources {
		candidates, err := src.ListCandidates(ctx, m.cnf.Sources.Limit)
		if err != nil {
			// A connector failure yields zero candidates for this cycle;
			// the remaining sources still run.
			span.RecordError(err)
			logrus.Errorf("source %s listing failed: %v", src.Name(), err)
			continue
		}

		for i := range candidates {
			asset := &candidates[i]
			if m.dedup.Contains(asset.CompositeID()) {
				logrus.Debugf("skipping %s: already delivered", asset.CompositeID())
				continue
			}
			if _, err := m.Deliver(ctx, asset); err != nil {
				notification.NotifyError(err)
			} else {
				delivered++
			}
			if !m.throttle(ctx) {
				return
			}
		}
	}

	if m.dedup.Dirty() {
		if err := m.dedup.FlushToRemote(ctx); err != nil {
			// In-process state is intact; the next clean flush catches up.
			logrus.Errorf("dedup history flush failed: %v", err)
		}
	}
	span.SetAttributes(attribute.Int("cycle.delivered", delivered))
}

// throttle spaces out consecutive sends. Returns false when the context was
// canceled mid-wait.
func (m *Moebot) throttle(ctx context.Context) bool {
	wait := time.Duration(m.cnf.Sources.ThrottleSec) * time.Second
	if wait <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}
