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

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alwitt/dashmq/apis"
	"github.com/alwitt/dashmq/common"
	"github.com/alwitt/dashmq/core"
	"github.com/alwitt/dashmq/dispatch"
	"github.com/alwitt/dashmq/state"
	"github.com/alwitt/dashmq/subscription"
	"github.com/apex/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// RunServer run the dashboard state server. natsClient is nil unless the
// update mirror is enabled. Blocks until runTimeContext ends.
func RunServer(
	runTimeContext context.Context,
	config *common.SystemConfig,
	instance string,
	natsClient *core.NatsClient,
	wg *sync.WaitGroup,
) error {
	logTags := log.Fields{
		"module":    "cmd",
		"component": "server",
		"instance":  instance,
	}

	// -------------------------------------------------------------------
	// Define the core components

	store, err := state.GetInMemoryStore(config.Dashboard.ConfigMapUpdateMode)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define state store")
		return err
	}

	registry, err := subscription.GetRegistry(
		config.Stream.SubscriberBufferLen, config.Stream.MaxConsecutiveDrops,
	)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define subscriber registry")
		return err
	}

	var mirror dispatch.EventMirror
	if config.Mirror.Enabled {
		if natsClient == nil {
			return fmt.Errorf("update mirror enabled but no NATS client given")
		}
		mirror, err = dispatch.GetNatsEventMirror(*natsClient, config.Mirror.Subject)
		if err != nil {
			log.WithError(err).WithFields(logTags).Errorf("Unable to define update mirror")
			return err
		}
	}

	tp, err := common.GetNewTaskProcessorInstance("coordinator", 64)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define task processor")
		return err
	}

	coordinator, err := dispatch.DefineCoordinator(store, registry, tp, mirror)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define coordinator")
		return err
	}

	if err := tp.StartEventLoop(wg); err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to start coordinator event loop")
		return err
	}
	defer func() {
		if err := tp.StopEventLoop(); err != nil {
			log.WithError(err).WithFields(logTags).Error("Coordinator event loop stop failed")
		}
	}()

	// -------------------------------------------------------------------
	// Start the HTTP server

	localCtxt, lclCancel := context.WithCancel(runTimeContext)
	defer lclCancel()
	httpHandler, err := apis.GetAPIRestDashboardHandler(
		localCtxt, coordinator, config.HTTP, config.Stream, natsClient, wg,
	)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define HTTP handler")
		return err
	}

	router := mux.NewRouter()
	mainRouter := apis.RegisterPathPrefix(router, config.HTTP.Endpoints.PathPrefix, nil)

	// Dashboard snapshot read and update
	dashboardAPIRouter := apis.RegisterPathPrefix(
		mainRouter, "/v1/dashboard", map[string]http.HandlerFunc{
			"get": httpHandler.GetDashboardHandler(),
			"put": httpHandler.UpdateDashboardHandler(),
		},
	)

	// Dashboard update stream
	_ = apis.RegisterPathPrefix(
		dashboardAPIRouter, "/stream", map[string]http.HandlerFunc{
			"get": httpHandler.StreamDashboardHandler(),
		},
	)

	// Health check
	_ = apis.RegisterPathPrefix(mainRouter, "/alive", map[string]http.HandlerFunc{
		"get": httpHandler.AliveHandler(),
	})
	_ = apis.RegisterPathPrefix(mainRouter, "/ready", map[string]http.HandlerFunc{
		"get": httpHandler.ReadyHandler(),
	})

	// Add logging
	router.Use(func(next http.Handler) http.Handler {
		return handlers.CombinedLoggingHandler(httpHandler, next)
	})

	serverListen := fmt.Sprintf(
		"%s:%d", config.HTTP.Server.ListenOn, config.HTTP.Server.Port,
	)
	httpSrv := &http.Server{
		Addr:         serverListen,
		ReadTimeout:  time.Second * time.Duration(config.HTTP.Server.ReadTimeout),
		WriteTimeout: time.Second * time.Duration(config.HTTP.Server.WriteTimeout),
		IdleTimeout:  time.Second * time.Duration(config.HTTP.Server.IdleTimeout),
		Handler:      h2c.NewHandler(router, &http2.Server{}),
	}

	// Cancel runtime context on shutdown
	httpSrv.RegisterOnShutdown(lclCancel)

	// Start the server
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP Server Failure")
		}
	}()

	log.WithFields(logTags).Infof("Started HTTP server on http://%s", serverListen)

	// ============================================================================

	<-runTimeContext.Done()

	// Stop the HTTP server
	{
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Failure during HTTP shutdown")
		}
	}

	return nil
}
