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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alwitt/dashmq/common"
	"github.com/alwitt/dashmq/core"
	"github.com/alwitt/dashmq/dispatch"
	"github.com/alwitt/dashmq/state"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// APIRestDashboardHandler REST handler for the dashboard state service
type APIRestDashboardHandler struct {
	APIRestHandler
	coordinator       dispatch.Coordinator
	validate          *validator.Validate
	natsClient        *core.NatsClient
	keepAliveInterval time.Duration
	baseContext       context.Context
	wg                *sync.WaitGroup
}

// GetAPIRestDashboardHandler define APIRestDashboardHandler. natsClient is
// nil unless the update mirror is enabled; it only feeds the readiness probe.
func GetAPIRestDashboardHandler(
	baseContext context.Context,
	coordinator dispatch.Coordinator,
	httpConfig common.HTTPConfig,
	streamConfig common.StreamConfig,
	natsClient *core.NatsClient,
	wg *sync.WaitGroup,
) (APIRestDashboardHandler, error) {
	logTags := log.Fields{
		"module":    "apis",
		"component": "dashboard",
	}
	return APIRestDashboardHandler{
		APIRestHandler: APIRestHandler{
			Component:       common.Component{LogTags: logTags},
			requestIDHeader: httpConfig.Logging.RequestIDHeader,
		},
		coordinator:       coordinator,
		validate:          validator.New(),
		natsClient:        natsClient,
		keepAliveInterval: time.Second * time.Duration(streamConfig.KeepAliveInterval),
		baseContext:       baseContext,
		wg:                wg,
	}, nil
}

// =======================================================================
// Dashboard read

// APIRestRespDashboardState response carrying one full dashboard snapshot
type APIRestRespDashboardState struct {
	StandardResponse
	// State the current dashboard snapshot
	State state.DashboardState `json:"state"`
}

// GetDashboard fetch the current dashboard snapshot. No side effects.
func (h APIRestDashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.requestLogTags(r)
	log.WithFields(localLogTags).Debug("Dashboard snapshot requested")
	h.reply(w, http.StatusOK, APIRestRespDashboardState{
		StandardResponse: getStdRESTSuccessMsg(),
		State:            h.coordinator.CurrentSnapshot(),
	}, "GetDashboard")
}

// GetDashboardHandler Wrapper around GetDashboard
func (h APIRestDashboardHandler) GetDashboardHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.GetDashboard(w, r)
	})
}

// =======================================================================
// Dashboard update

// APIRestReqDashboardUpdate one partial dashboard update request. The explicit
// updated_fields list, not value presence, decides which fields apply. Field
// names may use snake_case or camelCase.
type APIRestReqDashboardUpdate struct {
	// UpdatedBy optional self-identification of the mutating caller
	UpdatedBy string `json:"updated_by,omitempty" validate:"omitempty,max=128"`
	// UpdatedFields the fields being changed
	UpdatedFields []string `json:"updated_fields" validate:"omitempty,dive,max=64"`
	// State the partial record carrying the new values
	State state.Document `json:"state"`
}

// APIRestRespDashboardUpdate response for one dashboard update request
type APIRestRespDashboardUpdate struct {
	// Success whether at least one field was applied
	Success bool `json:"success"`
	// Message detail on rejected fields or the no-op condition
	Message string `json:"message,omitempty"`
	// State the authoritative snapshot after the call, present on failure as
	// well so the caller can resynchronize
	State state.DashboardState `json:"state"`
	// AppliedFields the canonical names of the fields which were assigned
	AppliedFields []state.FieldName `json:"applied_fields,omitempty"`
}

// UpdateDashboard apply a partial dashboard update and broadcast the result
func (h APIRestDashboardHandler) UpdateDashboard(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.requestLogTags(r)

	var request APIRestReqDashboardUpdate
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		msg := "Unable to parse request body"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		h.reply(
			w, http.StatusBadRequest, getStdRESTErrorMsg(http.StatusBadRequest, &msg),
			"UpdateDashboard",
		)
		return
	}
	if err := h.validate.Struct(&request); err != nil {
		msg := "Invalid request body"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		h.reply(
			w, http.StatusBadRequest, getStdRESTErrorMsg(http.StatusBadRequest, &msg),
			"UpdateDashboard",
		)
		return
	}

	// Translate caller field naming at the edge; unknown names pass through
	// canonicalized so they surface as per-field warnings, not failures
	fieldNames := make([]state.FieldName, 0, len(request.UpdatedFields))
	for _, raw := range request.UpdatedFields {
		canonical, known := state.NormalizeFieldName(raw)
		if !known {
			log.WithFields(localLogTags).Warnf("Request named unrecognized field '%s'", raw)
		}
		fieldNames = append(fieldNames, canonical)
	}

	// Caller identity for provenance tagging
	requester := request.UpdatedBy
	if requester == "" {
		requester = h.requestID(r)
	}

	result, err := h.coordinator.Update(r.Context(), requester, fieldNames, request.State)
	if err != nil {
		msg := "Unable to process update"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		h.reply(
			w, http.StatusInternalServerError,
			getStdRESTErrorMsg(http.StatusInternalServerError, &msg),
			"UpdateDashboard",
		)
		return
	}

	h.reply(w, http.StatusOK, APIRestRespDashboardUpdate{
		Success:       result.Success,
		Message:       result.Message,
		State:         result.Snapshot,
		AppliedFields: result.Applied,
	}, "UpdateDashboard")
}

// UpdateDashboardHandler Wrapper around UpdateDashboard
func (h APIRestDashboardHandler) UpdateDashboardHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.UpdateDashboard(w, r)
	})
}

// =======================================================================
// Dashboard update stream

// APIRestRespDashboardEvent wrapper object for one streamed update event
type APIRestRespDashboardEvent struct {
	StandardResponse
	state.UpdateEvent
}

// StreamDashboard establish a dashboard update stream for a client. This is a
// long lived server sent event stream; the first event is always a full-sync
// snapshot, then one event per accepted mutation from any caller. The stream
// closes on client disconnect, server shutdown, or server internal error.
func (h APIRestDashboardHandler) StreamDashboard(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.requestLogTags(r)
	var respCode int
	var respBody interface{}
	defer func() {
		if err := writeRESTResponse(w, respCode, respBody); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	// Send support headers for SSE first
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Type", "text/event-stream")

	// Read the client ID, or mint one for the session
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.New().String()
	}
	localLogTags["client"] = clientID

	// Create stream flusher
	writeFlusher, ok := w.(http.Flusher)
	if !ok {
		msg := "Streaming not supported"
		log.WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = getStdRESTErrorMsg(http.StatusInternalServerError, &msg)
		return
	}

	// Register with the coordinator; the initial sync event is queued before
	// this returns
	subscriber, err := h.coordinator.Attach(r.Context(), clientID)
	if err != nil {
		msg := fmt.Sprintf("Unable to attach subscriber '%s'", clientID)
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusBadRequest
		respBody = getStdRESTErrorMsg(http.StatusBadRequest, &msg)
		return
	}
	defer h.coordinator.Detach(clientID)
	log.WithFields(localLogTags).Info("Dashboard update stream established")

	// Keepalive ticks keep intermediaries from timing the stream out
	runtimeCtxt, cancel := context.WithCancel(r.Context())
	defer cancel()
	keepAlive := make(chan bool, 1)
	keepAliveTimer, err := common.GetIntervalTimerInstance(
		fmt.Sprintf("sse-keepalive/%s", clientID), runtimeCtxt, h.wg,
	)
	if err != nil {
		msg := "Unable to define keepalive timer"
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = getStdRESTErrorMsg(http.StatusInternalServerError, &msg)
		return
	}
	if err := keepAliveTimer.Start(h.keepAliveInterval, func() error {
		select {
		case keepAlive <- true:
		default:
		}
		return nil
	}); err != nil {
		msg := "Unable to start keepalive timer"
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = getStdRESTErrorMsg(http.StatusInternalServerError, &msg)
		return
	}
	defer func() {
		_ = keepAliveTimer.Stop()
	}()

	// Process events
	complete := false
	onError := func(err error, msg string) {
		complete = true
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = getStdRESTErrorMsg(http.StatusInternalServerError, &msg)
	}
	for !complete {
		select {
		case <-h.baseContext.Done():
			// Server stopping
			complete = true
			log.WithFields(localLogTags).Info("Terminating update stream on server stop")
			msg := "Server stopping"
			respCode = http.StatusInternalServerError
			respBody = getStdRESTErrorMsg(http.StatusInternalServerError, &msg)
		case <-r.Context().Done():
			// Request closed
			complete = true
			log.WithFields(localLogTags).Info("Terminating update stream on request end")
			respCode = http.StatusOK
			respBody = getStdRESTSuccessMsg()
		case <-keepAlive:
			// Comment line per the SSE convention; ignored by clients
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				onError(err, "Failed to transmit keepalive")
				break
			}
			writeFlusher.Flush()
		case event, ok := <-subscriber.Events():
			if !ok {
				// The registry evicted this subscriber for falling behind
				err := fmt.Errorf("subscriber '%s' evicted", clientID)
				onError(err, "Subscriber event channel closed")
				break
			}
			resp := APIRestRespDashboardEvent{
				StandardResponse: getStdRESTSuccessMsg(),
				UpdateEvent:      event,
			}
			// Serialize as JSON
			serialize, err := json.Marshal(&resp)
			if err != nil {
				onError(err, "Failed to serialize update event for transmission")
				break
			}
			// Send and flush
			written, err := fmt.Fprintf(w, "%s\n", serialize)
			writeFlusher.Flush()
			if err != nil {
				onError(err, "Failed to transmit update event")
				break
			}
			log.WithFields(localLogTags).Debugf("Written %dB", written)
		}
	}
	// On final flush
	writeFlusher.Flush()
}

// StreamDashboardHandler Wrapper around StreamDashboard
func (h APIRestDashboardHandler) StreamDashboardHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.StreamDashboard(w, r)
	})
}

// =======================================================================
// Health Checks

// Alive liveness check. Returns success to indicate the REST API is live.
func (h APIRestDashboardHandler) Alive(w http.ResponseWriter, r *http.Request) {
	h.reply(w, http.StatusOK, getStdRESTSuccessMsg(), "Alive")
}

// AliveHandler Wrapper around Alive
func (h APIRestDashboardHandler) AliveHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.Alive(w, r)
	})
}

// Ready readiness check. Fails while the NATS update mirror, when enabled, is
// not connected.
func (h APIRestDashboardHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.natsClient != nil && h.natsClient.NATs().Status() != nats.CONNECTED {
		msg := "not ready"
		h.reply(
			w, http.StatusInternalServerError,
			getStdRESTErrorMsg(http.StatusInternalServerError, &msg),
			"Ready",
		)
		return
	}
	h.reply(w, http.StatusOK, getStdRESTSuccessMsg(), "Ready")
}

// ReadyHandler Wrapper around Ready
func (h APIRestDashboardHandler) ReadyHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.Ready(w, r)
	})
}
