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
	"context"
	"fmt"
	"reflect"

	"github.com/alwitt/dashmq/common"
	"github.com/alwitt/dashmq/state"
	"github.com/alwitt/dashmq/subscription"
	"github.com/apex/log"
)

// NoValidFieldsMessage response message for an update which changed nothing
const NoValidFieldsMessage = "no valid fields to update"

// UpdateResult outcome of one update call. The snapshot is always present so
// a caller can resynchronize even after a failed update.
type UpdateResult struct {
	// Success whether at least one field was applied
	Success bool
	// Message human readable detail; empty on clean success
	Message string
	// Snapshot the authoritative record after the call
	Snapshot state.DashboardState
	// Applied the fields which were assigned
	Applied []state.FieldName
}

// Coordinator the single chokepoint for "mutate, then notify". Mutation
// application and snapshot fan-out run on one event loop goroutine, so every
// subscriber observes the same sequence of update events, and no event is
// broadcast before its mutation is committed to the store.
type Coordinator interface {
	// Update validate and apply a partial update on behalf of requesterID,
	// then fan the resulting snapshot out to all subscribers including the
	// requester
	Update(
		ctxt context.Context,
		requesterID string,
		fieldNames []state.FieldName,
		doc state.Document,
	) (UpdateResult, error)
	// Attach register a new subscriber and deliver its initial full-sync
	// event before any later broadcast can reach it
	Attach(ctxt context.Context, clientID string) (*subscription.Subscriber, error)
	// Detach remove a subscriber. Idempotent.
	Detach(clientID string)
	// CurrentSnapshot read the current record without side effects
	CurrentSnapshot() state.DashboardState
}

// coordinatorImpl implements Coordinator
type coordinatorImpl struct {
	common.Component
	store    state.Store
	registry subscription.Registry
	tp       common.TaskProcessor
	mirror   EventMirror
}

// DefineCoordinator create new broadcast coordinator. The task processor must
// be started by the caller. mirror may be nil when update mirroring is
// disabled.
func DefineCoordinator(
	store state.Store,
	registry subscription.Registry,
	tp common.TaskProcessor,
	mirror EventMirror,
) (Coordinator, error) {
	logTags := log.Fields{
		"module": "dispatch", "component": "coordinator",
	}
	instance := &coordinatorImpl{
		Component: common.Component{LogTags: logTags},
		store:     store,
		registry:  registry,
		tp:        tp,
		mirror:    mirror,
	}
	// Add handlers
	if err := tp.AddToTaskExecutionMap(
		reflect.TypeOf(coordinatorUpdateReq{}), instance.processUpdateRequest,
	); err != nil {
		return nil, err
	}
	if err := tp.AddToTaskExecutionMap(
		reflect.TypeOf(coordinatorAttachReq{}), instance.processAttachRequest,
	); err != nil {
		return nil, err
	}
	return instance, nil
}

// ----------------------------------------------------------------------------------------

type coordinatorUpdateReq struct {
	requesterID string
	fieldNames  []state.FieldName
	doc         state.Document
	resultChan  chan UpdateResult
}

// Update validate and apply a partial update, then fan out the new snapshot
func (c *coordinatorImpl) Update(
	ctxt context.Context,
	requesterID string,
	fieldNames []state.FieldName,
	doc state.Document,
) (UpdateResult, error) {
	request := coordinatorUpdateReq{
		requesterID: requesterID,
		fieldNames:  fieldNames,
		doc:         doc,
		resultChan:  make(chan UpdateResult, 1),
	}
	if err := c.tp.Submit(ctxt, request); err != nil {
		log.WithError(err).WithFields(c.LogTags).Errorf("Failed to submit update request")
		return UpdateResult{}, err
	}
	select {
	case result := <-request.resultChan:
		return result, nil
	case <-ctxt.Done():
		return UpdateResult{}, ctxt.Err()
	}
}

func (c *coordinatorImpl) processUpdateRequest(param interface{}) error {
	request, ok := param.(coordinatorUpdateReq)
	if !ok {
		return fmt.Errorf(
			"can not process unknown type %s for update request", reflect.TypeOf(param),
		)
	}
	request.resultChan <- c.handleUpdate(request)
	return nil
}

// handleUpdate runs on the event loop goroutine
func (c *coordinatorImpl) handleUpdate(request coordinatorUpdateReq) UpdateResult {
	// Empty update requests are benign non-events, not errors
	if len(request.fieldNames) == 0 {
		return UpdateResult{
			Success:  false,
			Message:  NoValidFieldsMessage,
			Snapshot: c.store.Snapshot(),
		}
	}

	outcome := c.store.ApplyPartial(request.fieldNames, request.doc)

	// Per-field validation failures are reported back to the caller only
	message := ""
	if len(outcome.Rejected) > 0 {
		message = fmt.Sprintf("rejected fields: %v", outcome.Rejected)
	}

	if len(outcome.Applied) == 0 {
		// All named fields were rejected. No timestamp change, no broadcast.
		if message == "" {
			message = NoValidFieldsMessage
		}
		return UpdateResult{Success: false, Message: message, Snapshot: outcome.Snapshot}
	}

	event := state.UpdateEvent{
		State:         outcome.Snapshot,
		UpdatedBy:     request.requesterID,
		UpdatedFields: outcome.Applied,
	}
	delivered := c.registry.Broadcast(event)
	log.WithFields(c.LogTags).Debugf(
		"Update by '%s' applied %d field(s), reached %d subscriber(s)",
		request.requesterID, len(outcome.Applied), delivered,
	)

	// Mirror failures never affect the update or its fan-out
	if c.mirror != nil {
		if err := c.mirror.MirrorEvent(event); err != nil {
			log.WithError(err).WithFields(c.LogTags).Warn("Update mirror publish failed")
		}
	}

	return UpdateResult{
		Success:  true,
		Message:  message,
		Snapshot: outcome.Snapshot,
		Applied:  outcome.Applied,
	}
}

// ----------------------------------------------------------------------------------------

type coordinatorAttachReq struct {
	clientID   string
	resultChan chan coordinatorAttachResp
}

type coordinatorAttachResp struct {
	subscriber *subscription.Subscriber
	err        error
}

// Attach register a new subscriber and deliver its initial full-sync event
func (c *coordinatorImpl) Attach(
	ctxt context.Context, clientID string,
) (*subscription.Subscriber, error) {
	request := coordinatorAttachReq{
		clientID:   clientID,
		resultChan: make(chan coordinatorAttachResp, 1),
	}
	if err := c.tp.Submit(ctxt, request); err != nil {
		log.WithError(err).WithFields(c.LogTags).Errorf("Failed to submit attach request")
		return nil, err
	}
	select {
	case result := <-request.resultChan:
		return result.subscriber, result.err
	case <-ctxt.Done():
		// The registration may still land; drop it so nothing leaks
		go func() {
			if result := <-request.resultChan; result.err == nil {
				c.registry.Unregister(clientID)
			}
		}()
		return nil, ctxt.Err()
	}
}

func (c *coordinatorImpl) processAttachRequest(param interface{}) error {
	request, ok := param.(coordinatorAttachReq)
	if !ok {
		return fmt.Errorf(
			"can not process unknown type %s for attach request", reflect.TypeOf(param),
		)
	}

	// Running on the event loop, no broadcast can interleave between the
	// registration and the initial sync push
	subscriber, err := c.registry.Register(request.clientID)
	if err != nil {
		request.resultChan <- coordinatorAttachResp{err: err}
		return nil
	}
	c.registry.Deliver(request.clientID, state.UpdateEvent{
		State:         c.store.Snapshot(),
		UpdatedBy:     state.SyncEventSource,
		UpdatedFields: []state.FieldName{},
	})
	request.resultChan <- coordinatorAttachResp{subscriber: subscriber}
	return nil
}

// ----------------------------------------------------------------------------------------

// Detach remove a subscriber
func (c *coordinatorImpl) Detach(clientID string) {
	c.registry.Unregister(clientID)
}

// CurrentSnapshot read the current record without side effects
func (c *coordinatorImpl) CurrentSnapshot() state.DashboardState {
	return c.store.Snapshot()
}
