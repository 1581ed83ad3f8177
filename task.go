// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"context"
	"sync"
)

type taskKey struct{}

// WithTask returns a context carrying the calling task's id.
func WithTask(ctx context.Context, id TaskID) context.Context {
	return context.WithValue(ctx, taskKey{}, id)
}

// TaskFromContext returns the task id carried by ctx.
func TaskFromContext(ctx context.Context) (TaskID, bool) {
	id, ok := ctx.Value(taskKey{}).(TaskID)
	return id, ok
}

// TaskTable is a concurrency-safe [Tasks] backed by a map.
type TaskTable struct {
	mu   sync.RWMutex
	prio map[TaskID]int
}

// NewTaskTable returns an empty table.
func NewTaskTable() *TaskTable {
	return &TaskTable{prio: make(map[TaskID]int)}
}

// SetPriority records the priority of id.
func (t *TaskTable) SetPriority(id TaskID, prio int) {
	t.mu.Lock()
	t.prio[id] = prio
	t.mu.Unlock()
}

// Remove forgets id.
func (t *TaskTable) Remove(id TaskID) {
	t.mu.Lock()
	delete(t.prio, id)
	t.mu.Unlock()
}

// Priority implements [Tasks]. Unknown tasks get [DefaultTaskPriority].
func (t *TaskTable) Priority(id TaskID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.prio[id]; ok {
		return p
	}
	return DefaultTaskPriority
}
