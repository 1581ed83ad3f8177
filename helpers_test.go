// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"code.hybscloud.com/msgq"
)

// tick is the tick length of kernels built by newKernel.
const tick = 10 * time.Millisecond

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

// newKernel builds a 100 Hz kernel that is shut down with the test.
func newKernel(t *testing.T, b *msgq.Builder) *msgq.Kernel {
	t.Helper()
	if b == nil {
		b = msgq.New()
	}
	k, err := b.TicksPerSecond(100).Logger(quietLogger()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(k.Shutdown)
	return k
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// waitBlocked waits until readers and writers tasks are blocked on h.
func waitBlocked(t *testing.T, k *msgq.Kernel, h msgq.Handle, readers, writers int) {
	t.Helper()
	waitFor(t, "blocked tasks", func() bool {
		st, err := k.Stat(h)
		return err == nil && st.ReadersWaiting == readers && st.WritersWaiting == writers
	})
}

type result struct {
	msg string
	err error
}
