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

package common

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskProcessorBasic(t *testing.T) {
	assert := assert.New(t)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	uut, err := GetNewTaskProcessorInstance("ut-basic", 4)
	assert.Nil(err)

	type testTask struct {
		value int
	}

	seen := make(chan int, 4)
	assert.Nil(uut.AddToTaskExecutionMap(
		reflect.TypeOf(testTask{}), func(param interface{}) error {
			task, ok := param.(testTask)
			assert.True(ok)
			seen <- task.value
			return nil
		},
	))

	assert.Nil(uut.StartEventLoop(&wg))
	defer func() {
		assert.Nil(uut.StopEventLoop())
	}()

	// Submitted tasks run in submission order on the single event loop
	for itr := 0; itr < 4; itr++ {
		assert.Nil(uut.Submit(utCtxt, testTask{value: itr}))
	}
	for itr := 0; itr < 4; itr++ {
		select {
		case value := <-seen:
			assert.Equal(itr, value)
		case <-time.After(time.Second):
			assert.FailNow("timed out waiting for task execution")
		}
	}
}

func TestTaskProcessorUnknownTask(t *testing.T) {
	assert := assert.New(t)

	uut, err := GetNewTaskProcessorInstance("ut-unknown", 1)
	assert.Nil(err)

	// No mapping installed
	assert.NotNil(uut.ProcessNewTaskParam(struct{}{}))

	type knownTask struct{}
	type unknownTask struct{}
	assert.Nil(uut.AddToTaskExecutionMap(
		reflect.TypeOf(knownTask{}), func(param interface{}) error {
			return nil
		},
	))
	assert.Nil(uut.ProcessNewTaskParam(knownTask{}))
	assert.NotNil(uut.ProcessNewTaskParam(unknownTask{}))
}

func TestTaskProcessorSubmitCancel(t *testing.T) {
	assert := assert.New(t)

	uut, err := GetNewTaskProcessorInstance("ut-cancel", 1)
	assert.Nil(err)

	type testTask struct{}

	// Fill the buffer without a running event loop, then verify a further
	// submission unblocks on context cancel
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	assert.Nil(uut.Submit(utCtxt, testTask{}))

	submitReturn := make(chan error, 1)
	go func() {
		submitReturn <- uut.Submit(utCtxt, testTask{})
	}()
	utCtxtCancel()
	select {
	case err := <-submitReturn:
		assert.NotNil(err)
	case <-time.After(time.Second):
		assert.FailNow("Submit did not unblock on context cancel")
	}
}
