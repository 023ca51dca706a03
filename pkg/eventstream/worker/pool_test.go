package worker

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ryanlack616/howell-brain/pkg/eventstream"
	"github.com/ryanlack616/howell-brain/pkg/journal"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.JournalEvent
	fail   bool
	block  chan struct{}
	closed bool
}

func (r *recordingPublisher) PublishJournal(_ context.Context, event *eventstream.JournalEvent) error {
	if r.block != nil {
		<-r.block
	}
	if r.fail {
		return errors.New("broker unreachable")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

func entryFor(seq uint64) journal.Entry {
	e, err := journal.AddRelation("Ryan", "builds", "StullAtlas")
	Expect(err).NotTo(HaveOccurred())
	e.Seq = seq
	e.Machine = "laptop-abc123"
	return e
}

var _ = Describe("Pool", func() {
	It("publishes every queued entry in order before closing", func() {
		pub := &recordingPublisher{}
		wp, err := NewPool(&Config{Publisher: pub, Version: "v1.2.3"})
		Expect(err).NotTo(HaveOccurred())

		for i := range 5 {
			Expect(wp.Enqueue(entryFor(uint64(i + 1)))).To(BeTrue())
		}
		Expect(wp.Close()).To(Succeed())

		Expect(pub.closed).To(BeTrue())
		Expect(pub.events).To(HaveLen(5))
		for i, ev := range pub.events {
			Expect(ev.Entry.Seq).To(Equal(uint64(i + 1)))
			Expect(ev.Source.Version).To(Equal("v1.2.3"))
			Expect(ev.Source.Machine).To(Equal("laptop-abc123"))
		}
	})

	It("drops events when the queue is full", func() {
		pub := &recordingPublisher{block: make(chan struct{})}
		wp, err := NewPool(&Config{Publisher: pub, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		// one in flight, one queued, the rest dropped
		accepted := 0
		for i := range 4 {
			if wp.Enqueue(entryFor(uint64(i + 1))) {
				accepted++
			}
		}
		Expect(accepted).To(BeNumerically("<=", 2))

		close(pub.block)
		Expect(wp.Close()).To(Succeed())

		dropped, _ := wp.Stats()
		Expect(dropped).To(Equal(4 - accepted))
	})

	It("counts failed publishes without stopping", func() {
		pub := &recordingPublisher{fail: true}
		wp, err := NewPool(&Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		wp.Enqueue(entryFor(1))
		wp.Enqueue(entryFor(2))
		Expect(wp.Close()).To(Succeed())

		_, failed := wp.Stats()
		Expect(failed).To(Equal(2))
	})

	It("requires a publisher", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})
})
