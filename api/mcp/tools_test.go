package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ryanlack616/howell-brain/pkg/brain"
	"github.com/ryanlack616/howell-brain/pkg/config"
	"github.com/ryanlack616/howell-brain/pkg/logger"
	"github.com/ryanlack616/howell-brain/pkg/search"
	"github.com/ryanlack616/howell-brain/pkg/tier"
)

func newTestServer(bootstrap bool) *Server {
	cfg := config.NewDefaultConfig()
	cfg.Storage.Root = GinkgoT().TempDir()
	cfg.Machine.ID = "laptop-aaaaaa"
	cfg.Memory.HotCapacity = 1
	cfg.Search.Provider = "scan"

	b, err := brain.New(cfg)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(b.Close)

	if bootstrap {
		_, err = b.Bootstrap(context.Background())
		Expect(err).NotTo(HaveOccurred())
	}

	s, err := NewServer(Config{Brain: b, Logger: logger.Nop()})
	Expect(err).NotTo(HaveOccurred())
	return s
}

func text(result *mcp.CallToolResult) string {
	Expect(result.Content).To(HaveLen(1))
	tc, ok := result.Content[0].(*mcp.TextContent)
	Expect(ok).To(BeTrue())
	return tc.Text
}

var _ = Describe("MCP tools", func() {
	var (
		s   *Server
		ctx context.Context
	)

	BeforeEach(func() {
		s = newTestServer(true)
		ctx = context.Background()
	})

	It("requires a brain and a logger", func() {
		_, err := NewServer(Config{Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("brain is required")))
		Expect(s.Handler()).NotTo(BeNil())
	})

	Describe("howell_bootstrap", func() {
		It("returns the last context without reloading", func() {
			result, out, err := s.handleBootstrap(ctx, nil, BootstrapInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.Stage).To(Equal(brain.StageReady))
			Expect(out.Machine).To(Equal("laptop-aaaaaa"))

			var decoded map[string]any
			Expect(json.Unmarshal([]byte(text(result)), &decoded)).To(Succeed())
			Expect(decoded).To(HaveKey("hot_memory"))
			Expect(decoded).To(HaveKey("pinned_memory"))
		})

		It("bootstraps on first use", func() {
			s = newTestServer(false)
			result, out, err := s.handleBootstrap(ctx, nil, BootstrapInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.Stage).To(Equal(brain.StageReady))
		})

		It("reloads on refresh", func() {
			_, _, _ = s.handleAddRelation(ctx, nil, RelationInput{From: "Ryan", Type: "works_on", To: "howell"})
			_, out, err := s.handleBootstrap(ctx, nil, BootstrapInput{Refresh: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Relations).To(HaveLen(1))
		})
	})

	It("reports errors as tool results before bootstrap", func() {
		s = newTestServer(false)
		result, _, err := s.handleAddObservation(ctx, nil, ObservationInput{Entity: "Ryan", Text: "x"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())
		Expect(text(result)).To(ContainSubstring("Adding observation failed"))
	})

	It("adds observations once", func() {
		_, out, err := s.handleAddObservation(ctx, nil, ObservationInput{Entity: "Ryan", Kind: "person", Text: "builds kilns"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Added).To(BeTrue())
		Expect(out.Created).To(BeTrue())

		_, out, err = s.handleAddObservation(ctx, nil, ObservationInput{Entity: "Ryan", Text: "builds kilns"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Added).To(BeFalse())
	})

	It("rejects blank observations", func() {
		result, _, err := s.handleAddObservation(ctx, nil, ObservationInput{Entity: "Ryan", Text: "  "})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())
	})

	It("adds and removes relations", func() {
		in := RelationInput{From: "Ryan", Type: "works_on", To: "howell"}

		_, out, err := s.handleAddRelation(ctx, nil, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Changed).To(BeTrue())

		_, out, err = s.handleRemoveRelation(ctx, nil, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Changed).To(BeTrue())

		_, out, err = s.handleRemoveRelation(ctx, nil, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Changed).To(BeFalse())
	})

	It("records sessions and evicts past capacity", func() {
		_, first, err := s.handleEndSession(ctx, nil, EndSessionInput{Narrative: "Fired the kiln. It cracked."})
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Evicted).To(BeEmpty())

		result, second, err := s.handleEndSession(ctx, nil, EndSessionInput{
			Narrative: "Glazed the bowls.",
			Learned:   []string{"cone 6 needs a slow cool"},
			Pin:       true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeFalse())
		Expect(second.Evicted).To(HaveLen(1))
		Expect(second.Pin).NotTo(BeNil())

		result, warm, err := s.handleReadTier(ctx, nil, ReadTierInput{Tier: "warm"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeFalse())
		Expect(warm.Tier).To(Equal(tier.Warm))
		Expect(warm.Contents.Warm).To(HaveLen(1))
		Expect(warm.Markdown).To(ContainSubstring("Fired the kiln"))
	})

	It("rejects an empty narrative", func() {
		result, _, err := s.handleEndSession(ctx, nil, EndSessionInput{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())
	})

	It("rejects unknown tiers", func() {
		result, _, err := s.handleReadTier(ctx, nil, ReadTierInput{Tier: "lukewarm"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())
		Expect(text(result)).To(ContainSubstring("unknown tier"))
	})

	It("pins once per title", func() {
		_, out, err := s.handlePin(ctx, nil, PinInput{Title: "Kiln", Text: "Cone 6 is the ceiling."})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.AlreadyPinned).To(BeFalse())

		_, out, err = s.handlePin(ctx, nil, PinInput{Title: "Kiln", Text: "other"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.AlreadyPinned).To(BeTrue())
	})

	It("searches memory", func() {
		_, _, _ = s.handleAddObservation(ctx, nil, ObservationInput{Entity: "Kiln", Kind: "tool", Text: "reaches cone 6"})
		_, _, _ = s.handlePin(ctx, nil, PinInput{Title: "Firing", Text: "Never open the kiln above 200C."})

		result, out, err := s.handleQuery(ctx, nil, QueryInput{Query: "kiln"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeFalse())
		Expect(out.KnowledgeGraph).To(HaveLen(1))
		Expect(out.Pinned).To(HaveLen(1))
		Expect(out.KnowledgeGraph[0].Kind).To(Equal(search.KindEntity))
	})

	It("requires a query", func() {
		result, _, err := s.handleQuery(ctx, nil, QueryInput{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())
	})

	It("saves snapshots and reports status", func() {
		_, _, _ = s.handleAddObservation(ctx, nil, ObservationInput{Entity: "Ryan", Text: "builds kilns"})

		_, snap, err := s.handleSnapshot(ctx, nil, SnapshotInput{Note: "weekly"})
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Note).To(Equal("weekly"))
		Expect(snap.Counts.Entities).To(Equal(1))

		_, st, err := s.handleStatus(ctx, nil, StatusInput{})
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Snapshot).NotTo(BeNil())
		Expect(st.Urgency.Score).To(BeZero())
	})
})
