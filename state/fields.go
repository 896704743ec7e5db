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
	"strings"
	"unicode"
)

// FieldName canonical identifier for one mutable dashboard field
type FieldName string

// The closed set of client mutable dashboard fields. The last-updated
// timestamp is managed by the store and is deliberately not in this set.
const (
	FieldTitle              FieldName = "title"
	FieldDescription        FieldName = "description"
	FieldStatusMessage      FieldName = "status_message"
	FieldIsEnabled          FieldName = "is_enabled"
	FieldMaintenanceMode    FieldName = "maintenance_mode"
	FieldNotificationsOn    FieldName = "notifications_on"
	FieldUserCount          FieldName = "user_count"
	FieldTemperature        FieldName = "temperature"
	FieldProgressPercentage FieldName = "progress_percentage"
	FieldPriority           FieldName = "priority"
	FieldConfig             FieldName = "config"
)

var knownFields = map[FieldName]bool{
	FieldTitle:              true,
	FieldDescription:        true,
	FieldStatusMessage:      true,
	FieldIsEnabled:          true,
	FieldMaintenanceMode:    true,
	FieldNotificationsOn:    true,
	FieldUserCount:          true,
	FieldTemperature:        true,
	FieldProgressPercentage: true,
	FieldPriority:           true,
	FieldConfig:             true,
}

// KnownField whether a canonical field name is part of the mutable field set
func KnownField(name FieldName) bool {
	return knownFields[name]
}

// NormalizeFieldName translate a caller provided field name into its canonical
// snake_case form. Callers may use either snake_case ("status_message") or
// camelCase ("statusMessage"); the translation happens here, once, at the
// interface edge. Returns false when the name does not map to a known field.
func NormalizeFieldName(raw string) (FieldName, bool) {
	canonical := FieldName(camelToSnake(strings.TrimSpace(raw)))
	if knownFields[canonical] {
		return canonical, true
	}
	return canonical, false
}

// camelToSnake convert camelCase to snake_case; snake_case input passes
// through unchanged
func camelToSnake(name string) string {
	var builder strings.Builder
	for idx, char := range name {
		if unicode.IsUpper(char) {
			if idx > 0 {
				builder.WriteRune('_')
			}
			builder.WriteRune(unicode.ToLower(char))
		} else {
			builder.WriteRune(char)
		}
	}
	return builder.String()
}
