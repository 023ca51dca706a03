package heartbeat_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ryanlack616/howell-brain/pkg/heartbeat"
)

var _ = Describe("Scheduler", func() {
	It("rejects a non-positive interval", func() {
		_, err := heartbeat.New(0, func(context.Context) error { return nil })
		Expect(err).To(HaveOccurred())
	})

	It("keeps running after a failed run", func() {
		var calls atomic.Int32
		s, err := heartbeat.New(20*time.Millisecond, func(context.Context) error {
			if calls.Add(1) == 1 {
				return errors.New("disk full")
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		s.Start(context.Background())
		DeferCleanup(s.Stop)

		Eventually(calls.Load, "2s").Should(BeNumerically(">=", 3))
		st := s.Status()
		Expect(st.Failures).To(Equal(1))
		Expect(st.Runs).To(BeNumerically(">=", 3))
	})

	It("survives a panicking run", func() {
		var calls atomic.Int32
		s, err := heartbeat.New(20*time.Millisecond, func(context.Context) error {
			if calls.Add(1) == 1 {
				panic("boom")
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		s.Start(context.Background())
		DeferCleanup(s.Stop)

		Eventually(calls.Load, "2s").Should(BeNumerically(">=", 2))
	})

	It("cancels the run context on Stop", func() {
		started := make(chan struct{}, 1)
		var cancelled atomic.Bool
		s, err := heartbeat.New(10*time.Millisecond, func(ctx context.Context) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-ctx.Done()
			cancelled.Store(true)
			return ctx.Err()
		})
		Expect(err).NotTo(HaveOccurred())

		s.Start(context.Background())
		Eventually(started, "2s").Should(Receive())
		s.Stop()
		Expect(cancelled.Load()).To(BeTrue())
	})
})
