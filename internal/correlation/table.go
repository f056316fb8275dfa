// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package correlation

import (
	"errors"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

var (
	ErrUnknownTrace  = errors.New("unknown trace id")
	ErrAlreadyFilled = errors.New("trace id already answered")
)

type Response struct {
	Status  int
	Payload []byte
}

type pending struct {
	once sync.Once
	done chan struct{}
	resp Response
}

// Table maps trace ids of outstanding asynchronous calls to their reply.
// An entry is filled at most once; later writes are rejected.
type Table struct {
	entries cmap.ConcurrentMap[string, *pending]
}

func NewTable() *Table {
	return &Table{entries: cmap.New[*pending]()}
}

// Register creates an empty entry. It returns false if traceID is taken.
func (t *Table) Register(traceID string) bool {
	return t.entries.SetIfAbsent(traceID, &pending{done: make(chan struct{})})
}

// Fill stores the reply for traceID if the entry exists and is still empty.
func (t *Table) Fill(traceID string, resp Response) error {
	p, ok := t.entries.Get(traceID)
	if !ok {
		return ErrUnknownTrace
	}
	filled := false
	p.once.Do(func() {
		p.resp = resp
		filled = true
		close(p.done)
	})
	if !filled {
		return ErrAlreadyFilled
	}
	return nil
}

// Done returns a channel closed once the entry is filled, or nil for an
// unknown trace id.
func (t *Table) Done(traceID string) <-chan struct{} {
	p, ok := t.entries.Get(traceID)
	if !ok {
		return nil
	}
	return p.done
}

// Take removes and returns the reply if it has arrived.
func (t *Table) Take(traceID string) (Response, bool) {
	p, ok := t.entries.Get(traceID)
	if !ok {
		return Response{}, false
	}
	select {
	case <-p.done:
	default:
		return Response{}, false
	}
	t.entries.Remove(traceID)
	return p.resp, true
}

func (t *Table) Remove(traceID string) {
	t.entries.Remove(traceID)
}

func (t *Table) Has(traceID string) bool {
	return t.entries.Has(traceID)
}

func (t *Table) Len() int {
	return t.entries.Count()
}
