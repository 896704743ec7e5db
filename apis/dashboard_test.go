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

package apis

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alwitt/dashmq/common"
	"github.com/alwitt/dashmq/dispatch"
	"github.com/alwitt/dashmq/state"
	"github.com/alwitt/dashmq/subscription"
	"github.com/stretchr/testify/assert"
)

func defineTestHandler(
	t *testing.T, baseCtxt context.Context, wg *sync.WaitGroup,
) (APIRestDashboardHandler, dispatch.Coordinator, common.TaskProcessor) {
	assert := assert.New(t)

	store, err := state.GetInMemoryStore(common.ConfigMapReplace)
	assert.Nil(err)
	registry, err := subscription.GetRegistry(64, 4)
	assert.Nil(err)
	tp, err := common.GetNewTaskProcessorInstance("ut-apis", 16)
	assert.Nil(err)
	coordinator, err := dispatch.DefineCoordinator(store, registry, tp, nil)
	assert.Nil(err)
	assert.Nil(tp.StartEventLoop(wg))

	httpConfig := common.HTTPConfig{
		Logging: common.HTTPRequestLogging{RequestIDHeader: "Dashmq-Request-ID"},
	}
	streamConfig := common.StreamConfig{
		SubscriberBufferLen: 64, MaxConsecutiveDrops: 4, KeepAliveInterval: 1,
	}
	handler, err := GetAPIRestDashboardHandler(
		baseCtxt, coordinator, httpConfig, streamConfig, nil, wg,
	)
	assert.Nil(err)
	return handler, coordinator, tp
}

func TestGetDashboard(t *testing.T) {
	assert := assert.New(t)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	handler, _, tp := defineTestHandler(t, utCtxt, &wg)
	defer func() {
		assert.Nil(tp.StopEventLoop())
	}()

	request := httptest.NewRequest("GET", "/v1/dashboard", nil)
	recorder := httptest.NewRecorder()
	handler.GetDashboardHandler()(recorder, request)

	assert.Equal(http.StatusOK, recorder.Code)
	var response APIRestRespDashboardState
	assert.Nil(json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.True(response.Success)
	assert.Equal("System Dashboard", response.State.Title)
	assert.Equal(int64(42), response.State.UserCount)
	assert.Equal(state.PriorityMedium, response.State.Priority)
}

func TestUpdateDashboard(t *testing.T) {
	assert := assert.New(t)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	handler, _, tp := defineTestHandler(t, utCtxt, &wg)
	defer func() {
		assert.Nil(tp.StopEventLoop())
	}()

	sendUpdate := func(body string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(
			"PUT", "/v1/dashboard", bytes.NewBufferString(body),
		)
		recorder := httptest.NewRecorder()
		handler.UpdateDashboardHandler()(recorder, request)
		return recorder
	}

	// Normal partial update; camelCase names translate at the edge
	recorder := sendUpdate(`{
		"updated_by": "ut-caller",
		"updated_fields": ["title", "userCount"],
		"state": {"title": "Updated", "user_count": 7, "temperature": 99.9}
	}`)
	assert.Equal(http.StatusOK, recorder.Code)
	var response APIRestRespDashboardUpdate
	assert.Nil(json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.True(response.Success)
	assert.Equal("Updated", response.State.Title)
	assert.Equal(int64(7), response.State.UserCount)
	// Temperature was present but not named, so it kept its default
	assert.Equal(23.5, response.State.Temperature)
	assert.ElementsMatch(
		[]state.FieldName{state.FieldTitle, state.FieldUserCount},
		response.AppliedFields,
	)

	// Empty update is a benign no-op which still returns the snapshot
	recorder = sendUpdate(`{"updated_fields": [], "state": {}}`)
	assert.Equal(http.StatusOK, recorder.Code)
	response = APIRestRespDashboardUpdate{}
	assert.Nil(json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.False(response.Success)
	assert.Equal(dispatch.NoValidFieldsMessage, response.Message)
	assert.Equal("Updated", response.State.Title)

	// Out-of-range value is rejected per field, state unchanged
	recorder = sendUpdate(`{
		"updated_fields": ["progressPercentage"],
		"state": {"progress_percentage": 150}
	}`)
	assert.Equal(http.StatusOK, recorder.Code)
	response = APIRestRespDashboardUpdate{}
	assert.Nil(json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.False(response.Success)
	assert.Equal(int32(75), response.State.ProgressPercentage)

	// Unrecognized field names warn but do not fail the valid remainder
	recorder = sendUpdate(`{
		"updated_fields": ["bogusField", "status_message"],
		"state": {"status_message": "half valid"}
	}`)
	assert.Equal(http.StatusOK, recorder.Code)
	response = APIRestRespDashboardUpdate{}
	assert.Nil(json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.True(response.Success)
	assert.Equal("half valid", response.State.StatusMessage)
	assert.Equal([]state.FieldName{state.FieldStatusMessage}, response.AppliedFields)

	// Malformed body
	recorder = sendUpdate(`{not json`)
	assert.Equal(http.StatusBadRequest, recorder.Code)
}

// streamRecorder is a response writer safe to inspect while the stream
// handler is still writing on another goroutine
type streamRecorder struct {
	lock   sync.Mutex
	header http.Header
	code   int
	body   bytes.Buffer
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header), code: http.StatusOK}
}

func (r *streamRecorder) Header() http.Header {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.header
}

func (r *streamRecorder) Write(b []byte) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.body.Write(b)
}

func (r *streamRecorder) WriteHeader(code int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.code = code
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) snapshot() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.body.String()
}

func (r *streamRecorder) eventLines() []string {
	lines := []string{}
	for _, line := range strings.Split(r.snapshot(), "\n") {
		if strings.HasPrefix(line, "{") {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestStreamDashboard(t *testing.T) {
	assert := assert.New(t)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	handler, coordinator, tp := defineTestHandler(t, utCtxt, &wg)
	defer func() {
		assert.Nil(tp.StopEventLoop())
	}()

	reqCtxt, reqCancel := context.WithCancel(utCtxt)
	request := httptest.NewRequest(
		"GET", "/v1/dashboard/stream?client_id=stream-ut", nil,
	).WithContext(reqCtxt)
	recorder := newStreamRecorder()

	streamDone := sync.WaitGroup{}
	streamDone.Add(1)
	go func() {
		defer streamDone.Done()
		handler.StreamDashboardHandler()(recorder, request)
	}()

	waitForLines := func(count int) bool {
		for itr := 0; itr < 200; itr++ {
			if len(recorder.eventLines()) >= count {
				return true
			}
			time.Sleep(time.Millisecond * 10)
		}
		return false
	}

	// The stream opens with the full-sync event
	assert.True(waitForLines(1))
	assert.Equal("text/event-stream", recorder.Header().Get("Content-Type"))

	// Push one update through; the subscriber is attached by now
	result, err := coordinator.Update(
		utCtxt, "ut-writer", []state.FieldName{state.FieldTitle},
		state.Document{Title: func() *string { v := "Streamed"; return &v }()},
	)
	assert.Nil(err)
	assert.True(result.Success)
	assert.True(waitForLines(2))

	// End the stream from the client side
	reqCancel()
	streamDone.Wait()

	lines := recorder.eventLines()
	assert.GreaterOrEqual(len(lines), 2)

	var sync0 APIRestRespDashboardEvent
	assert.Nil(json.Unmarshal([]byte(lines[0]), &sync0))
	assert.Equal(state.SyncEventSource, sync0.UpdatedBy)
	assert.Empty(sync0.UpdatedFields)

	var update APIRestRespDashboardEvent
	assert.Nil(json.Unmarshal([]byte(lines[1]), &update))
	assert.Equal("ut-writer", update.UpdatedBy)
	assert.Equal("Streamed", update.State.Title)
}

func TestStreamDashboardDuplicateClient(t *testing.T) {
	assert := assert.New(t)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	handler, coordinator, tp := defineTestHandler(t, utCtxt, &wg)
	defer func() {
		assert.Nil(tp.StopEventLoop())
	}()

	// Occupy the client ID
	_, err := coordinator.Attach(utCtxt, "taken")
	assert.Nil(err)

	request := httptest.NewRequest("GET", "/v1/dashboard/stream?client_id=taken", nil)
	recorder := httptest.NewRecorder()
	handler.StreamDashboardHandler()(recorder, request)
	assert.Equal(http.StatusBadRequest, recorder.Code)

	coordinator.Detach("taken")
}

func TestHealthEndpoints(t *testing.T) {
	assert := assert.New(t)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	handler, _, tp := defineTestHandler(t, utCtxt, &wg)
	defer func() {
		assert.Nil(tp.StopEventLoop())
	}()

	recorder := httptest.NewRecorder()
	handler.AliveHandler()(recorder, httptest.NewRequest("GET", "/alive", nil))
	assert.Equal(http.StatusOK, recorder.Code)

	// Without the mirror there is no NATS dependency to gate readiness
	recorder = httptest.NewRecorder()
	handler.ReadyHandler()(recorder, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(http.StatusOK, recorder.Code)
}
