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

import "fmt"

// Document a partial dashboard record carried by one update request. Absent
// fields are nil. Which fields actually apply is decided solely by the update
// request's explicit field name list, never by value presence alone.
type Document struct {
	Title              *string           `json:"title,omitempty" validate:"omitempty,max=256"`
	Description        *string           `json:"description,omitempty" validate:"omitempty,max=1024"`
	StatusMessage      *string           `json:"status_message,omitempty" validate:"omitempty,max=1024"`
	IsEnabled          *bool             `json:"is_enabled,omitempty"`
	MaintenanceMode    *bool             `json:"maintenance_mode,omitempty"`
	NotificationsOn    *bool             `json:"notifications_on,omitempty"`
	UserCount          *int64            `json:"user_count,omitempty"`
	Temperature        *float64          `json:"temperature,omitempty"`
	ProgressPercentage *int32            `json:"progress_percentage,omitempty"`
	Priority           *string           `json:"priority,omitempty"`
	Config             map[string]string `json:"config,omitempty"`
}

// HasValue whether the document carries a value for a field
func (d Document) HasValue(field FieldName) bool {
	switch field {
	case FieldTitle:
		return d.Title != nil
	case FieldDescription:
		return d.Description != nil
	case FieldStatusMessage:
		return d.StatusMessage != nil
	case FieldIsEnabled:
		return d.IsEnabled != nil
	case FieldMaintenanceMode:
		return d.MaintenanceMode != nil
	case FieldNotificationsOn:
		return d.NotificationsOn != nil
	case FieldUserCount:
		return d.UserCount != nil
	case FieldTemperature:
		return d.Temperature != nil
	case FieldProgressPercentage:
		return d.ProgressPercentage != nil
	case FieldPriority:
		return d.Priority != nil
	case FieldConfig:
		return d.Config != nil
	default:
		return false
	}
}

// FieldRejection one field of an update request which was not applied
type FieldRejection struct {
	// Field is the canonical name of the rejected field
	Field FieldName `json:"field"`
	// Reason is a human readable explanation
	Reason string `json:"reason"`
}

// String toString function
func (r FieldRejection) String() string {
	return fmt.Sprintf("%s: %s", r.Field, r.Reason)
}
