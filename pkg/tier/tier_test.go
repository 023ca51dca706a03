package tier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// recordingFS logs every write and can fail the first write whose
// description matches failOn, simulating a crash at that point.
type recordingFS struct {
	osFS
	root   string
	ops    []string
	failOn string
}

var errCrash = errors.New("simulated crash")

func (r *recordingFS) record(op, path string) error {
	rel, _ := filepath.Rel(r.root, path)
	desc := op + " " + filepath.ToSlash(rel)
	if r.failOn != "" && strings.HasPrefix(desc, r.failOn) {
		r.failOn = ""
		return errCrash
	}
	r.ops = append(r.ops, desc)
	return nil
}

func (r *recordingFS) AppendFile(path string, data []byte) error {
	if err := r.record("append", path); err != nil {
		return err
	}
	return r.osFS.AppendFile(path, data)
}

func (r *recordingFS) WriteFileAtomic(path string, data []byte) error {
	if err := r.record("write", path); err != nil {
		return err
	}
	return r.osFS.WriteFileAtomic(path, data)
}

var _ = Describe("Manager", func() {
	var (
		dir string
		now time.Time
		m   *Manager
		ctx context.Context
	)

	BeforeEach(func() {
		dir = filepath.Join(GinkgoT().TempDir(), "memory")
		now = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
		ctx = context.Background()

		var err error
		m, err = Open(dir, Options{Machine: "stullatlas-aaaaaa", Now: func() time.Time { return now }})
		Expect(err).NotTo(HaveOccurred())
	})

	record := func(narrative string) Session {
		s, _, err := m.RecordSession(ctx, SessionInput{Narrative: narrative})
		Expect(err).NotTo(HaveOccurred())
		now = now.Add(24 * time.Hour)
		return s
	}

	It("creates the cold archive directory", func() {
		Expect(filepath.Join(dir, "cold")).To(BeADirectory())
	})

	Describe("RecordSession", func() {
		It("inserts at the head of HOT", func() {
			first := record("First session. Talked about glazes.")
			second := record("Second session.")

			c, err := m.Read(Hot)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Hot).To(HaveLen(2))
			Expect(c.Hot[0].ID).To(Equal(second.ID))
			Expect(c.Hot[1].ID).To(Equal(first.ID))
			Expect(first.Title).To(Equal("First session."))
			Expect(first.Machine).To(Equal("stullatlas-aaaaaa"))
		})

		It("rejects an empty narrative", func() {
			_, _, err := m.RecordSession(ctx, SessionInput{Narrative: "   "})
			Expect(err).To(MatchError(ErrEmptyNarrative))
		})

		It("pins when asked and reports duplicates", func() {
			_, res, err := m.RecordSession(ctx, SessionInput{Narrative: "Ryan's birthday is in May.", Pin: true, PinTitle: "birthday"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res).NotTo(BeNil())
			Expect(res.AlreadyPinned).To(BeFalse())

			_, res, err = m.RecordSession(ctx, SessionInput{Narrative: "Again about the birthday.", Pin: true, PinTitle: " birthday "})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.AlreadyPinned).To(BeTrue())

			c, err := m.Read(Core)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Core).To(HaveLen(1))
		})
	})

	Describe("Pin", func() {
		It("stores one record per title", func() {
			for range 3 {
				_, err := m.Pin("kiln schedule", "cone 6 slow cool", "reference")
				Expect(err).NotTo(HaveOccurred())
			}

			c, err := m.Read(Core)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Core).To(HaveLen(1))
			Expect(c.Core[0].Reason).To(Equal("reference"))
		})

		It("returns the existing pin for a duplicate", func() {
			first, err := m.Pin("kiln schedule", "v1", "")
			Expect(err).NotTo(HaveOccurred())

			res, err := m.Pin("kiln schedule", "v2", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.AlreadyPinned).To(BeTrue())
			Expect(res.Pin.Text).To(Equal(first.Pin.Text))
		})

		It("treats titles that differ in case as different memories", func() {
			res, err := m.Pin("Kiln", "the studio kiln fires to cone 10", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.AlreadyPinned).To(BeFalse())

			res, err = m.Pin("kiln", "a different memory", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.AlreadyPinned).To(BeFalse())

			c, err := m.Read(Core)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Core).To(HaveLen(2))
			Expect([]string{c.Core[0].Title, c.Core[1].Title}).To(ConsistOf("Kiln", "kiln"))
		})

		It("rejects an empty title", func() {
			_, err := m.Pin(" ", "x", "")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("EvictIfOverCapacity", func() {
		It("keeps HOT within capacity for any number of sessions", func() {
			for n := range 12 {
				record(fmt.Sprintf("Session number %d.", n))

				_, err := m.EvictIfOverCapacity(ctx, 5)
				Expect(err).NotTo(HaveOccurred())

				stats, err := m.Stats()
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.Hot).To(BeNumerically("<=", 5))
				Expect(stats.Sessions()).To(Equal(n + 1))
				Expect(stats.Warm).To(Equal(stats.Cold))
			}
		})

		It("demotes the oldest sessions to WARM and COLD", func() {
			oldest := record("The oldest one. With detail.")
			record("Middle.")
			record("Newest.")

			evicted, err := m.EvictIfOverCapacity(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(evicted).To(HaveLen(1))
			Expect(evicted[0].Session.ID).To(Equal(oldest.ID))
			Expect(evicted[0].Bucket).To(Equal("2026-01"))

			c, err := m.ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Warm).To(Equal([]string{"2026-01-15 | The oldest one."}))
			Expect(c.Cold).To(HaveLen(1))
			Expect(c.Cold[0].Narrative).To(Equal("The oldest one. With detail."))
			Expect(c.Hot).To(HaveLen(2))
		})

		It("keeps a WARM line per session when summaries collide", func() {
			record("Glaze test.")
			now = now.Add(-24 * time.Hour)
			record("Glaze test.")
			record("Newest.")

			_, err := m.EvictIfOverCapacity(ctx, 1)
			Expect(err).NotTo(HaveOccurred())

			all, err := m.ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(all.Warm).To(Equal([]string{"2026-01-15 | Glaze test.", "2026-01-15 | Glaze test."}))
			Expect(all.Cold).To(HaveLen(2))
		})

		It("files sessions into monthly buckets", func() {
			record("January.")
			now = time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
			record("February.")
			record("Later.")

			_, err := m.EvictIfOverCapacity(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Join(dir, "cold", "2026-01.jsonl")).To(BeAnExistingFile())
			Expect(filepath.Join(dir, "cold", "2026-02.jsonl")).To(BeAnExistingFile())

			stats, err := m.Stats()
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(Stats{Hot: 0, Warm: 3, Cold: 3, ColdBuckets: 2, Core: 0}))
		})

		It("writes WARM, then COLD, then HOT", func() {
			record("Old.")
			record("New.")

			rec := &recordingFS{root: dir}
			m.fs = rec

			_, err := m.EvictIfOverCapacity(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ops).To(Equal([]string{
				"append warm.log",
				"append cold/2026-01.jsonl",
				"write hot.json",
			}))
		})

		It("does not duplicate records when retried after a crash before the HOT rewrite", func() {
			old := record("Old.")
			record("New.")

			m.fs = &recordingFS{root: dir, failOn: "write hot.json"}
			_, err := m.EvictIfOverCapacity(ctx, 1)
			Expect(err).To(MatchError(errCrash))

			c, err := m.Read(Hot)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Hot).To(HaveLen(2))

			m.fs = osFS{}
			_, err = m.EvictIfOverCapacity(ctx, 1)
			Expect(err).NotTo(HaveOccurred())

			all, err := m.ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(all.Hot).To(HaveLen(1))
			Expect(all.Warm).To(HaveLen(1))
			Expect(all.Cold).To(HaveLen(1))
			Expect(all.Cold[0].ID).To(Equal(old.ID))
		})

		It("does not duplicate the WARM line when the COLD append crashed", func() {
			record("Old.")
			record("New.")

			m.fs = &recordingFS{root: dir, failOn: "append cold/"}
			_, err := m.EvictIfOverCapacity(ctx, 1)
			Expect(err).To(MatchError(errCrash))

			m.fs = osFS{}
			_, err = m.EvictIfOverCapacity(ctx, 1)
			Expect(err).NotTo(HaveOccurred())

			all, err := m.ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(all.Warm).To(HaveLen(1))
			Expect(all.Cold).To(HaveLen(1))
			Expect(all.Hot).To(HaveLen(1))
		})

		It("checks cancellation between sessions", func() {
			record("a")
			record("b")

			cctx, cancel := context.WithCancel(ctx)
			cancel()
			evicted, err := m.EvictIfOverCapacity(cctx, 0)
			Expect(err).To(MatchError(context.Canceled))
			Expect(evicted).To(BeEmpty())
		})

		It("rejects a negative capacity", func() {
			_, err := m.EvictIfOverCapacity(ctx, -1)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Read", func() {
		It("returns empty contents for a fresh directory", func() {
			c, err := m.ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(Equal(Contents{}))
		})

		It("skips an unreadable core line", func() {
			_, err := m.Pin("good", "x", "")
			Expect(err).NotTo(HaveOccurred())

			f, err := os.OpenFile(filepath.Join(dir, "core.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.WriteString("{broken\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Close()).To(Succeed())

			c, err := m.Read(Core)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Core).To(HaveLen(1))
		})

		It("fails on a corrupt HOT file", func() {
			Expect(os.WriteFile(filepath.Join(dir, "hot.json"), []byte("{"), 0o644)).To(Succeed())
			_, err := m.Read(Hot)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Summarize", func() {
	It("takes the first sentence", func() {
		Expect(Summarize("Fired the kiln. It went well.")).To(Equal("Fired the kiln."))
	})

	It("stops at the first line", func() {
		Expect(Summarize("Headline\nbody")).To(Equal("Headline"))
	})

	It("keeps WARM lines parseable", func() {
		Expect(Summarize("a | b")).To(Equal("a / b"))
	})

	It("fits within 120 characters", func() {
		Expect(len([]rune(Summarize(strings.Repeat("x", 300))))).To(Equal(120))
	})
})

var _ = Describe("Parse", func() {
	It("accepts pinned as core", func() {
		t, err := Parse("Pinned")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(Core))
	})

	It("rejects unknown tiers", func() {
		_, err := Parse("lukewarm")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Render", func() {
	It("renders the WARM index as a table", func() {
		out := Render(Warm, Contents{Warm: []string{"2026-01-15 | Fired the kiln."}})
		Expect(out).To(ContainSubstring("| 2026-01-15 | Fired the kiln. |"))
	})

	It("renders pins with their reason", func() {
		out := Render(Core, Contents{Core: []Pin{{Title: "kiln", Text: "cone 6", Reason: "safety"}}})
		Expect(out).To(ContainSubstring("### kiln"))
		Expect(out).To(ContainSubstring("safety"))
	})

	It("groups cold sessions by month", func() {
		out := Render(Cold, Contents{Cold: []Session{
			{Title: "a", Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
			{Title: "b", Date: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)},
		}})
		Expect(out).To(ContainSubstring("### 2026-01"))
		Expect(out).To(ContainSubstring("### 2026-02"))
	})
})
