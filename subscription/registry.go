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

package subscription

import (
	"fmt"
	"sync"
	"time"

	"github.com/alwitt/dashmq/common"
	"github.com/alwitt/dashmq/state"
	"github.com/apex/log"
)

// Subscriber one connected client's delivery channel
type Subscriber struct {
	// ClientID opaque identifier for the client
	ClientID string
	// ConnectedAt when the subscriber registered
	ConnectedAt time.Time
	events      chan state.UpdateEvent
	// consecutiveDrops guarded by the registry lock
	consecutiveDrops int
}

// Events the subscriber's outbound event channel. The channel closes when the
// subscriber is unregistered.
func (s *Subscriber) Events() <-chan state.UpdateEvent {
	return s.events
}

// Registry tracks the live set of subscribers and owns event delivery to
// their outbound channels
type Registry interface {
	// Register add a new subscriber under an ID. The ID must be unused.
	Register(clientID string) (*Subscriber, error)
	// Unregister remove a subscriber and close its event channel. Idempotent;
	// safe to call concurrently with delivery.
	Unregister(clientID string)
	// Deliver push an event directly to one subscriber, bypassing fan-out.
	// Used for the initial full-sync event. A no-op if the subscriber is
	// already gone.
	Deliver(clientID string, event state.UpdateEvent) bool
	// Broadcast fan an event out to every registered subscriber without
	// blocking on any of them. Returns the number of deliveries.
	Broadcast(event state.UpdateEvent) int
	// Count number of registered subscribers
	Count() int
}

// registryImpl implements Registry
type registryImpl struct {
	common.Component
	lock                sync.Mutex
	subscribers         map[string]*Subscriber
	bufferLen           int
	maxConsecutiveDrops int
}

// GetRegistry define a subscriber registry. Each subscriber is given an
// outbound buffer of bufferLen events; a subscriber dropping
// maxConsecutiveDrops events in a row is forcibly unregistered.
func GetRegistry(bufferLen int, maxConsecutiveDrops int) (Registry, error) {
	if bufferLen < 1 {
		return nil, fmt.Errorf("subscriber buffer length %d invalid", bufferLen)
	}
	if maxConsecutiveDrops < 1 {
		return nil, fmt.Errorf("max consecutive drops %d invalid", maxConsecutiveDrops)
	}
	logTags := log.Fields{
		"module": "subscription", "component": "registry",
	}
	return &registryImpl{
		Component:           common.Component{LogTags: logTags},
		subscribers:         make(map[string]*Subscriber),
		bufferLen:           bufferLen,
		maxConsecutiveDrops: maxConsecutiveDrops,
	}, nil
}

// Register add a new subscriber under an ID
func (r *registryImpl) Register(clientID string) (*Subscriber, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, exist := r.subscribers[clientID]; exist {
		return nil, fmt.Errorf("client '%s' already has an active subscription", clientID)
	}
	subscriber := &Subscriber{
		ClientID:    clientID,
		ConnectedAt: time.Now(),
		events:      make(chan state.UpdateEvent, r.bufferLen),
	}
	r.subscribers[clientID] = subscriber
	log.WithFields(r.LogTags).Infof("Registered subscriber '%s'", clientID)
	return subscriber, nil
}

// Unregister remove a subscriber and close its event channel
func (r *registryImpl) Unregister(clientID string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.dropSubscriber(clientID)
}

// dropSubscriber remove one subscriber. Caller must hold the lock.
func (r *registryImpl) dropSubscriber(clientID string) {
	subscriber, exist := r.subscribers[clientID]
	if !exist {
		return
	}
	delete(r.subscribers, clientID)
	// Channel close happens under the lock, as do all sends, so a send on a
	// closed channel can not occur
	close(subscriber.events)
	log.WithFields(r.LogTags).Infof("Unregistered subscriber '%s'", clientID)
}

// Deliver push an event directly to one subscriber
func (r *registryImpl) Deliver(clientID string, event state.UpdateEvent) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	subscriber, exist := r.subscribers[clientID]
	if !exist {
		return false
	}
	return r.offer(subscriber, event)
}

// Broadcast fan an event out to every registered subscriber
func (r *registryImpl) Broadcast(event state.UpdateEvent) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	delivered := 0
	// Iterate a stable snapshot of the current IDs; offer may evict
	targets := make([]string, 0, len(r.subscribers))
	for clientID := range r.subscribers {
		targets = append(targets, clientID)
	}
	for _, clientID := range targets {
		subscriber, exist := r.subscribers[clientID]
		if !exist {
			continue
		}
		if r.offer(subscriber, event) {
			delivered++
		}
	}
	return delivered
}

// offer non-blocking send to one subscriber. Caller must hold the lock. A
// full buffer drops the event; repeated drops evict the subscriber so one
// stalled client never delays the rest.
func (r *registryImpl) offer(subscriber *Subscriber, event state.UpdateEvent) bool {
	select {
	case subscriber.events <- event:
		subscriber.consecutiveDrops = 0
		return true
	default:
		subscriber.consecutiveDrops++
		log.WithFields(r.LogTags).Warnf(
			"Dropped event for subscriber '%s' (%d consecutive)",
			subscriber.ClientID, subscriber.consecutiveDrops,
		)
		if subscriber.consecutiveDrops >= r.maxConsecutiveDrops {
			log.WithFields(r.LogTags).Errorf(
				"Evicting stalled subscriber '%s'", subscriber.ClientID,
			)
			r.dropSubscriber(subscriber.ClientID)
		}
		return false
	}
}

// Count number of registered subscribers
func (r *registryImpl) Count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.subscribers)
}
