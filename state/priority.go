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

import "strings"

// Priority dashboard priority level
type Priority string

// Supported priority levels
const (
	PriorityUnspecified Priority = "PRIORITY_UNSPECIFIED"
	PriorityLow         Priority = "PRIORITY_LOW"
	PriorityMedium      Priority = "PRIORITY_MEDIUM"
	PriorityHigh        Priority = "PRIORITY_HIGH"
	PriorityCritical    Priority = "PRIORITY_CRITICAL"
)

// ParsePriority translate a caller provided priority string into a Priority.
// Unknown values map to PriorityUnspecified instead of failing; short forms
// ("low", "HIGH") are accepted alongside the full enum names.
func ParsePriority(value string) Priority {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "PRIORITY_LOW", "LOW":
		return PriorityLow
	case "PRIORITY_MEDIUM", "MEDIUM":
		return PriorityMedium
	case "PRIORITY_HIGH", "HIGH":
		return PriorityHigh
	case "PRIORITY_CRITICAL", "CRITICAL":
		return PriorityCritical
	default:
		return PriorityUnspecified
	}
}
