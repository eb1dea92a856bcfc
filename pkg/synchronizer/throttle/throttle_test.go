// Copyright 2025 PlantPulse Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package throttle_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/throttle"
)

// recorder collects published snapshots across goroutines.
type recorder struct {
	mu        sync.Mutex
	published []models.ChannelData
}

func (r *recorder) publish(data models.ChannelData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, data)
}

func (r *recorder) snapshots() []models.ChannelData {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]models.ChannelData, len(r.published))
	copy(result, r.published)
	return result
}

var _ = Describe("Throttler", func() {
	var rec *recorder

	BeforeEach(func() {
		rec = &recorder{}
	})

	It("publishes the first update of a burst immediately", func() {
		t := throttle.New("stoppages", 50*time.Millisecond, rec.publish)

		t.Offer("v1")
		Expect(rec.snapshots()).To(Equal([]models.ChannelData{"v1"}))
	})

	It("coalesces a burst and publishes the newest snapshot on the trailing edge", func() {
		t := throttle.New("stoppages", 50*time.Millisecond, rec.publish)

		t.Offer("v1")
		t.Offer("v2")
		t.Offer("v3")
		t.Offer("v4")

		// Leading edge only so far.
		Expect(rec.snapshots()).To(Equal([]models.ChannelData{"v1"}))

		// Trailing edge carries the newest, intermediates are gone.
		Eventually(rec.snapshots, "500ms", "10ms").Should(Equal([]models.ChannelData{"v1", "v4"}))
		Consistently(rec.snapshots, "100ms", "10ms").Should(HaveLen(2))
	})

	It("publishes a lone update exactly once", func() {
		t := throttle.New("stoppages", 50*time.Millisecond, rec.publish)

		t.Offer("only")
		Consistently(rec.snapshots, "150ms", "10ms").Should(Equal([]models.ChannelData{"only"}))
	})

	It("opens a new leading edge once the interval has passed", func() {
		t := throttle.New("stoppages", 30*time.Millisecond, rec.publish)

		t.Offer("v1")
		time.Sleep(60 * time.Millisecond)
		t.Offer("v2")

		Expect(rec.snapshots()).To(Equal([]models.ChannelData{"v1", "v2"}))
	})

	It("publishes synchronously when the interval is zero", func() {
		t := throttle.New("stoppages", 0, rec.publish)

		t.Offer("v1")
		t.Offer("v2")
		Expect(rec.snapshots()).To(Equal([]models.ChannelData{"v1", "v2"}))
	})

	Describe("Stop", func() {
		It("drops the pending snapshot and ignores further offers", func() {
			t := throttle.New("stoppages", 50*time.Millisecond, rec.publish)

			t.Offer("v1")
			t.Offer("v2")
			t.Stop()
			t.Offer("v3")

			Consistently(rec.snapshots, "150ms", "10ms").Should(Equal([]models.ChannelData{"v1"}))
		})

		It("waits for an in-flight trailing publish before returning", func() {
			var mu sync.Mutex
			var order []string
			entered := make(chan struct{})
			release := make(chan struct{})
			calls := 0

			t := throttle.New("stoppages", 30*time.Millisecond, func(data models.ChannelData) {
				mu.Lock()
				calls++
				trailing := calls == 2
				mu.Unlock()
				if trailing {
					close(entered)
					<-release
				}
				mu.Lock()
				order = append(order, data.(string))
				mu.Unlock()
			})

			t.Offer("v1")
			t.Offer("v2")
			// The trailing publish is now blocked inside the callback.
			Eventually(entered).Should(BeClosed())

			stopped := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				t.Stop()
				mu.Lock()
				order = append(order, "stopped")
				mu.Unlock()
				close(stopped)
			}()

			// Stop must not return while the publish is still running,
			// otherwise a stale snapshot could land after a session teardown.
			Consistently(stopped, "100ms", "10ms").ShouldNot(BeClosed())

			close(release)
			Eventually(stopped).Should(BeClosed())

			mu.Lock()
			defer mu.Unlock()
			Expect(order).To(Equal([]string{"v1", "v2", "stopped"}))
		})
	})
})
