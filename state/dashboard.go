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

// DashboardState the one shared dashboard record
type DashboardState struct {
	// Title is the dashboard title
	Title string `json:"title"`
	// Description is the dashboard description
	Description string `json:"description"`
	// StatusMessage is the current status banner text
	StatusMessage string `json:"status_message"`
	// IsEnabled whether the dashboard is enabled
	IsEnabled bool `json:"is_enabled"`
	// MaintenanceMode whether the system is under maintenance
	MaintenanceMode bool `json:"maintenance_mode"`
	// NotificationsOn whether notifications are enabled
	NotificationsOn bool `json:"notifications_on"`
	// UserCount number of active users. Never negative.
	UserCount int64 `json:"user_count"`
	// Temperature current temperature reading
	Temperature float64 `json:"temperature"`
	// ProgressPercentage overall progress within [0, 100]
	ProgressPercentage int32 `json:"progress_percentage"`
	// Priority current dashboard priority level
	Priority Priority `json:"priority"`
	// Config free-form string-to-string configuration entries
	Config map[string]string `json:"config"`
	// LastUpdated timestamp of the last accepted mutation in ms since epoch.
	// Monotonically non-decreasing.
	LastUpdated int64 `json:"last_updated"`
}

// Clone returns a deep copy of the record. The config map is copied so the
// snapshot stays self-consistent after further store mutations.
func (s DashboardState) Clone() DashboardState {
	result := s
	result.Config = make(map[string]string, len(s.Config))
	for key, value := range s.Config {
		result.Config[key] = value
	}
	return result
}

// DefaultDashboardState initial dashboard record used at service startup
func DefaultDashboardState() DashboardState {
	return DashboardState{
		Title:              "System Dashboard",
		Description:        "Main control panel for the system",
		StatusMessage:      "All systems operational",
		IsEnabled:          true,
		MaintenanceMode:    false,
		NotificationsOn:    true,
		UserCount:          42,
		Temperature:        23.5,
		ProgressPercentage: 75,
		Priority:           PriorityMedium,
		Config: map[string]string{
			"theme":        "dark",
			"language":     "en",
			"refresh_rate": "5000",
		},
		LastUpdated: 0,
	}
}

// UpdateEvent one broadcast to dashboard subscribers. The first event a new
// subscriber receives is a full sync with UpdatedBy "server" and an empty
// UpdatedFields list; every later event carries the snapshot after one
// accepted mutation along with its provenance.
type UpdateEvent struct {
	// State is the full dashboard snapshot after the mutation
	State DashboardState `json:"state"`
	// UpdatedBy identifies the caller whose mutation produced this event
	UpdatedBy string `json:"updated_by"`
	// UpdatedFields names the fields the mutation applied
	UpdatedFields []FieldName `json:"updated_fields"`
}

// SyncEventSource provenance tag on initial full-sync events
const SyncEventSource = "server"
