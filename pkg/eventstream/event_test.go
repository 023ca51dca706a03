package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ryanlack616/howell-brain/pkg/eventstream"
	"github.com/ryanlack616/howell-brain/pkg/journal"
)

var _ = Describe("Event", func() {
	It("marshals JournalEvent with expected top-level keys", func() {
		entry, err := journal.AddRelation("Ryan", "builds", "StullAtlas")
		Expect(err).NotTo(HaveOccurred())
		entry.Machine = "stullatlas-aaaaaa"
		entry.Seq = 7

		event := eventstream.NewJournalEvent(entry, "v0.1.0")
		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKeyWithValue("source", HaveKeyWithValue("machine", "stullatlas-aaaaaa")))
		Expect(got).To(HaveKeyWithValue("entry", HaveKeyWithValue("op", "add_relation")))
	})

	It("assigns a fresh event id per event", func() {
		entry, err := journal.AddEntity("Ryan", "person")
		Expect(err).NotTo(HaveOccurred())

		Expect(eventstream.NewJournalEvent(entry, "").EventID).NotTo(Equal(eventstream.NewJournalEvent(entry, "").EventID))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeJournalAppended).To(Equal("howell.journal.appended"))
	})

	It("provides ErrNilEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilEvent).To(MatchError("nil journal event"))
	})
})
