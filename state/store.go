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

package state

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alwitt/dashmq/common"
	"github.com/apex/log"
)

// ApplyOutcome result of one partial update against the store
type ApplyOutcome struct {
	// Snapshot is the full record after the update
	Snapshot DashboardState
	// Applied are the fields which were assigned
	Applied []FieldName
	// Rejected are the fields which failed validation and were skipped
	Rejected []FieldRejection
}

// Store owns the canonical DashboardState. Reads and partial writes are
// atomic; a reader never observes a record with only part of a batch applied.
type Store interface {
	// Snapshot return a consistent full copy of the current record
	Snapshot() DashboardState
	// ApplyPartial assign the named fields from the document. Out-of-range
	// numeric values are rejected per field; the rest of the batch still
	// applies. The last-updated timestamp is stamped only when at least one
	// field was assigned.
	ApplyPartial(fieldNames []FieldName, doc Document) ApplyOutcome
}

// inMemoryStoreImpl implements Store
type inMemoryStoreImpl struct {
	common.Component
	lock                sync.Mutex
	record              DashboardState
	configMapUpdateMode string
	nowMS               func() int64
}

// GetInMemoryStore define an in-memory dashboard state store seeded with the
// default record. configMapUpdateMode selects common.ConfigMapReplace or
// common.ConfigMapMerge behavior for config map updates.
func GetInMemoryStore(configMapUpdateMode string) (Store, error) {
	if configMapUpdateMode != common.ConfigMapReplace &&
		configMapUpdateMode != common.ConfigMapMerge {
		return nil, fmt.Errorf("unknown config map update mode '%s'", configMapUpdateMode)
	}
	logTags := log.Fields{
		"module": "state", "component": "in-memory-store",
	}
	return &inMemoryStoreImpl{
		Component:           common.Component{LogTags: logTags},
		record:              DefaultDashboardState(),
		configMapUpdateMode: configMapUpdateMode,
		nowMS:               func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Snapshot return a consistent full copy of the current record
func (s *inMemoryStoreImpl) Snapshot() DashboardState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.record.Clone()
}

// ApplyPartial assign the named fields from the document
func (s *inMemoryStoreImpl) ApplyPartial(fieldNames []FieldName, doc Document) ApplyOutcome {
	s.lock.Lock()
	defer s.lock.Unlock()

	outcome := ApplyOutcome{}
	for _, field := range fieldNames {
		if !KnownField(field) {
			log.WithFields(s.LogTags).Warnf("Ignoring unrecognized field '%s'", field)
			outcome.Rejected = append(outcome.Rejected, FieldRejection{
				Field: field, Reason: "unrecognized field",
			})
			continue
		}
		if !doc.HasValue(field) {
			outcome.Rejected = append(outcome.Rejected, FieldRejection{
				Field: field, Reason: "no value provided",
			})
			continue
		}
		if reject := s.assignField(field, doc); reject != nil {
			outcome.Rejected = append(outcome.Rejected, *reject)
			continue
		}
		outcome.Applied = append(outcome.Applied, field)
	}

	// Stamp the timestamp only when the batch changed something
	if len(outcome.Applied) > 0 {
		now := s.nowMS()
		if now > s.record.LastUpdated {
			s.record.LastUpdated = now
		}
	}

	outcome.Snapshot = s.record.Clone()
	return outcome
}

// assignField validate and assign one field. Caller must hold the lock.
func (s *inMemoryStoreImpl) assignField(field FieldName, doc Document) *FieldRejection {
	switch field {
	case FieldTitle:
		s.record.Title = *doc.Title
	case FieldDescription:
		s.record.Description = *doc.Description
	case FieldStatusMessage:
		s.record.StatusMessage = *doc.StatusMessage
	case FieldIsEnabled:
		s.record.IsEnabled = *doc.IsEnabled
	case FieldMaintenanceMode:
		s.record.MaintenanceMode = *doc.MaintenanceMode
	case FieldNotificationsOn:
		s.record.NotificationsOn = *doc.NotificationsOn
	case FieldUserCount:
		if *doc.UserCount < 0 {
			return &FieldRejection{
				Field: field, Reason: fmt.Sprintf("user count %d is negative", *doc.UserCount),
			}
		}
		s.record.UserCount = *doc.UserCount
	case FieldTemperature:
		if math.IsNaN(*doc.Temperature) || math.IsInf(*doc.Temperature, 0) {
			return &FieldRejection{Field: field, Reason: "temperature is not a finite number"}
		}
		s.record.Temperature = *doc.Temperature
	case FieldProgressPercentage:
		if *doc.ProgressPercentage < 0 || *doc.ProgressPercentage > 100 {
			return &FieldRejection{
				Field: field,
				Reason: fmt.Sprintf(
					"progress percentage %d outside [0, 100]", *doc.ProgressPercentage,
				),
			}
		}
		s.record.ProgressPercentage = *doc.ProgressPercentage
	case FieldPriority:
		// Lenient enum handling; unknown values map to unspecified
		s.record.Priority = ParsePriority(*doc.Priority)
	case FieldConfig:
		if s.configMapUpdateMode == common.ConfigMapMerge {
			for key, value := range doc.Config {
				s.record.Config[key] = value
			}
		} else {
			replacement := make(map[string]string, len(doc.Config))
			for key, value := range doc.Config {
				replacement[key] = value
			}
			s.record.Config = replacement
		}
	}
	return nil
}
