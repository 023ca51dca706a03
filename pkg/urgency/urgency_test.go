package urgency_test

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ryanlack616/howell-brain/pkg/urgency"
)

var _ = Describe("Score", func() {
	th := urgency.DefaultThresholds()

	It("classifies the threshold scenario as urgent", func() {
		snapshot := urgency.Counts{Entities: 10, Sessions: 2}
		current := urgency.Counts{Entities: 12, Sessions: 4}

		res := urgency.Score(current, snapshot, 30, th)
		Expect(res.Score).To(Equal(10))
		Expect(res.Level).To(Equal(urgency.Urgent))
		Expect(res.Reasons).To(ConsistOf(
			urgency.Reason{Signal: urgency.SignalTime, Delta: 30, Points: 2},
			urgency.Reason{Signal: urgency.SignalEntities, Delta: 2, Points: 4},
			urgency.Reason{Signal: urgency.SignalSessions, Delta: 2, Points: 4},
		))
	})

	DescribeTable("levels",
		func(score int, level urgency.Level) {
			Expect(urgency.Classify(score, th)).To(Equal(level))
		},
		Entry("zero", 0, urgency.Normal),
		Entry("just below due", 4, urgency.Normal),
		Entry("due", 5, urgency.Due),
		Entry("just below urgent", 9, urgency.Due),
		Entry("urgent", 10, urgency.Urgent),
	)

	It("weights each signal", func() {
		zero := urgency.Counts{}
		Expect(urgency.Score(urgency.Counts{Relations: 3}, zero, 0, th).Score).To(Equal(3))
		Expect(urgency.Score(urgency.Counts{Pins: 1}, zero, 0, th).Score).To(Equal(3))
		Expect(urgency.Score(urgency.Counts{Observations: 9}, zero, 0, th).Score).To(Equal(1))
		Expect(urgency.Score(zero, zero, 11.9, th).Score).To(Equal(0))
		Expect(urgency.Score(zero, zero, 24, th).Score).To(Equal(2))
	})

	It("omits signals below their own weight from the reasons", func() {
		res := urgency.Score(urgency.Counts{Observations: 4}, urgency.Counts{}, 6, th)
		Expect(res.Score).To(BeZero())
		Expect(res.Reasons).To(BeEmpty())
	})

	It("clamps negative deltas to zero", func() {
		res := urgency.Score(urgency.Counts{Entities: 1}, urgency.Counts{Entities: 50}, 0, th)
		Expect(res.Score).To(BeZero())
	})

	It("treats negative elapsed time as zero", func() {
		Expect(urgency.Score(urgency.Counts{}, urgency.Counts{}, -48, th).Score).To(BeZero())
	})

	It("is non-decreasing in every delta", func() {
		base := urgency.Counts{Entities: 3, Relations: 4, Observations: 7, Pins: 1, Sessions: 2}
		snapshot := urgency.Counts{Entities: 1, Relations: 1, Observations: 1, Pins: 0, Sessions: 1}

		bump := []func(c *urgency.Counts){
			func(c *urgency.Counts) { c.Entities++ },
			func(c *urgency.Counts) { c.Relations++ },
			func(c *urgency.Counts) { c.Observations++ },
			func(c *urgency.Counts) { c.Pins++ },
			func(c *urgency.Counts) { c.Sessions++ },
		}

		for i, b := range bump {
			current := base
			prev := urgency.Score(current, snapshot, 20, th).Score
			for range 20 {
				b(&current)
				next := urgency.Score(current, snapshot, 20, th).Score
				Expect(next).To(BeNumerically(">=", prev), "signal %d", i)
				prev = next
			}
		}

		prev := urgency.Score(base, snapshot, 0, th).Score
		for h := 1.0; h < 200; h += 3.5 {
			next := urgency.Score(base, snapshot, h, th).Score
			Expect(next).To(BeNumerically(">=", prev))
			prev = next
		}
	})

	It("honours custom thresholds", func() {
		res := urgency.Score(urgency.Counts{Sessions: 1}, urgency.Counts{}, 0, urgency.Thresholds{Due: 1, Urgent: 2})
		Expect(res.Level).To(Equal(urgency.Urgent))
	})
})

var _ = Describe("SnapshotStore", func() {
	var store urgency.SnapshotStore

	BeforeEach(func() {
		store = urgency.SnapshotStore{Path: filepath.Join(GinkgoT().TempDir(), "consolidation.json")}
	})

	It("returns nil when no snapshot exists", func() {
		snap, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(snap).To(BeNil())
	})

	It("overwrites the previous snapshot", func() {
		at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		Expect(store.Save(urgency.Snapshot{Counts: urgency.Counts{Entities: 1}, Timestamp: at, Note: "first"})).To(Succeed())
		Expect(store.Save(urgency.Snapshot{Counts: urgency.Counts{Entities: 9}, Timestamp: at.Add(time.Hour), Note: "second"})).To(Succeed())

		snap, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Note).To(Equal("second"))
		Expect(snap.Counts.Entities).To(Equal(9))
		Expect(snap.HoursSince(at.Add(3 * time.Hour))).To(Equal(2.0))
	})
})
