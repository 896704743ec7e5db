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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFieldName(t *testing.T) {
	assert := assert.New(t)

	// Canonical snake_case passes through
	field, ok := NormalizeFieldName("status_message")
	assert.True(ok)
	assert.Equal(FieldStatusMessage, field)

	// camelCase translates at the edge
	field, ok = NormalizeFieldName("statusMessage")
	assert.True(ok)
	assert.Equal(FieldStatusMessage, field)

	field, ok = NormalizeFieldName("progressPercentage")
	assert.True(ok)
	assert.Equal(FieldProgressPercentage, field)

	field, ok = NormalizeFieldName(" userCount ")
	assert.True(ok)
	assert.Equal(FieldUserCount, field)

	// Single word fields are identical in both conventions
	field, ok = NormalizeFieldName("title")
	assert.True(ok)
	assert.Equal(FieldTitle, field)

	// Unknown names do not resolve
	_, ok = NormalizeFieldName("lastUpdated")
	assert.False(ok)
	_, ok = NormalizeFieldName("bogus_field")
	assert.False(ok)
	_, ok = NormalizeFieldName("")
	assert.False(ok)
}

func TestParsePriority(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(PriorityLow, ParsePriority("PRIORITY_LOW"))
	assert.Equal(PriorityMedium, ParsePriority("medium"))
	assert.Equal(PriorityHigh, ParsePriority(" HIGH "))
	assert.Equal(PriorityCritical, ParsePriority("PRIORITY_CRITICAL"))
	assert.Equal(PriorityUnspecified, ParsePriority("urgent"))
	assert.Equal(PriorityUnspecified, ParsePriority(""))
}
