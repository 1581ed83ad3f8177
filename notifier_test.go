// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"errors"
	"sync"
	"testing"

	"code.hybscloud.com/atomix"
	"github.com/sirupsen/logrus"
)

// TestNotifierCloseDeliversAccepted checks every note whose post succeeded
// is delivered, even when the post races close.
func TestNotifierCloseDeliversAccepted(t *testing.T) {
	if RaceEnabled {
		t.Skip("skip: atomix ordering is invisible to the race detector")
	}
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	for round := range 20 {
		var got atomix.Int64
		sender := EventSenderFunc(func(TaskID, uint32) error {
			got.Add(1)
			return nil
		})
		n := newNotifier(1024, 0, sender, log)

		const posters, each = 8, 50
		var accepted atomix.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})
		for p := range posters {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				<-start
				for i := range each {
					err := n.post(eventNote{task: TaskID(p), mask: uint32(i)})
					switch {
					case err == nil:
						accepted.Add(1)
					case !errors.Is(err, ErrEventSendFailed):
						t.Errorf("post: got %v, want nil or ErrEventSendFailed", err)
					}
				}
			}(p)
		}
		close(start)
		n.close()
		wg.Wait()

		if got.Load() != accepted.Load() {
			t.Fatalf("round %d: delivered %d, accepted %d", round, got.Load(), accepted.Load())
		}
		if n.delivered.Load() != uint64(accepted.Load()) {
			t.Fatalf("round %d: delivered counter %d, accepted %d", round, n.delivered.Load(), accepted.Load())
		}
	}
}
