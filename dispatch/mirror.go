// Copyright 2025-2026 The dashmq Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatch

import (
	"encoding/json"

	"github.com/alwitt/dashmq/common"
	"github.com/alwitt/dashmq/core"
	"github.com/alwitt/dashmq/state"
	"github.com/apex/log"
)

// EventMirror republishes broadcast update events for out-of-process
// consumers. Mirroring is best effort; failures must never block fan-out.
type EventMirror interface {
	MirrorEvent(event state.UpdateEvent) error
}

// natsEventMirror implements EventMirror against a NATS subject
type natsEventMirror struct {
	common.Component
	client  core.NatsClient
	subject string
}

// GetNatsEventMirror define an update mirror publishing JSON encoded update
// events under a NATS subject
func GetNatsEventMirror(client core.NatsClient, subject string) (EventMirror, error) {
	logTags := log.Fields{
		"module": "dispatch", "component": "nats-event-mirror", "subject": subject,
	}
	return &natsEventMirror{
		Component: common.Component{LogTags: logTags},
		client:    client,
		subject:   subject,
	}, nil
}

// MirrorEvent publish one update event
func (m *natsEventMirror) MirrorEvent(event state.UpdateEvent) error {
	serialized, err := json.Marshal(&event)
	if err != nil {
		log.WithError(err).WithFields(m.LogTags).Error("Failed to serialize update event")
		return err
	}
	if err := m.client.Publish(m.subject, serialized); err != nil {
		log.WithError(err).WithFields(m.LogTags).Error("Failed to publish update event")
		return err
	}
	log.WithFields(m.LogTags).Debugf("Mirrored update by '%s'", event.UpdatedBy)
	return nil
}
