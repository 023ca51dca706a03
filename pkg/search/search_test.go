package search_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ryanlack616/howell-brain/pkg/search"
)

var corpus = []search.Document{
	{ID: "entity:Ryan", Kind: search.KindEntity, Title: "Ryan", Body: "person\nbuilds kilns\nlikes cone 6 glazes", Source: "Ryan"},
	{ID: "entity:StullAtlas", Kind: search.KindEntity, Title: "StullAtlas", Body: "project\nglaze chemistry atlas", Source: "StullAtlas"},
	{ID: "session:1", Kind: search.KindSession, Title: "Fixed the glaze import", Body: "Fixed the glaze import.\nLearned: check units", Tier: "hot"},
	{ID: "pin:Name", Kind: search.KindPin, Title: "Name", Body: "The user goes by Ryan", Tier: "core"},
	{ID: "procedure:deploy.md", Kind: search.KindProcedure, Title: "deploy", Body: "run the deploy script", Source: "deploy.md"},
}

var _ = Describe("ScanIndex", func() {
	var (
		ctx context.Context
		idx *search.ScanIndex
	)

	BeforeEach(func() {
		ctx = context.Background()
		idx = search.NewScanIndex()
		Expect(idx.Rebuild(ctx, corpus)).To(Succeed())
	})

	It("matches substrings case-insensitively", func() {
		hits, err := idx.Search(ctx, "GLAZE", 10)
		Expect(err).NotTo(HaveOccurred())
		ids := []string{}
		for _, h := range hits {
			ids = append(ids, h.ID)
		}
		Expect(ids).To(ConsistOf("entity:Ryan", "entity:StullAtlas", "session:1"))
	})

	It("requires every term", func() {
		hits, err := idx.Search(ctx, "glaze atlas", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].ID).To(Equal("entity:StullAtlas"))
	})

	It("ranks title matches higher", func() {
		hits, err := idx.Search(ctx, "ryan", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(2))
		Expect(hits[0].ID).To(Equal("entity:Ryan"))
	})

	It("honours the limit", func() {
		hits, err := idx.Search(ctx, "glaze", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
	})

	It("returns nothing for an empty query", func() {
		hits, err := idx.Search(ctx, "   ", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(BeEmpty())
	})

	It("stops on a cancelled context", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := idx.Search(cctx, "glaze", 10)
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("Group", func() {
	It("sorts hits into groups with snippets", func() {
		hits := make([]search.Hit, 0, len(corpus))
		for _, d := range corpus {
			hits = append(hits, search.Hit{Document: d})
		}

		res := search.Group("ryan deploy", hits)
		Expect(res.Query).To(Equal("ryan deploy"))
		Expect(res.KnowledgeGraph).To(HaveLen(2))
		Expect(res.Sessions).To(HaveLen(1))
		Expect(res.Pinned).To(HaveLen(1))
		Expect(res.Procedures).To(HaveLen(1))
		Expect(res.Total()).To(Equal(5))

		Expect(res.Pinned[0].Snippets).To(Equal([]string{"The user goes by Ryan"}))
		Expect(res.Procedures[0].Snippets).To(Equal([]string{"run the deploy script"}))
	})

	It("returns empty groups rather than nil", func() {
		res := search.Group("x", nil)
		Expect(res.KnowledgeGraph).NotTo(BeNil())
		Expect(res.Total()).To(BeZero())
	})
})

var _ = Describe("Terms", func() {
	It("lowercases, strips quotes and deduplicates", func() {
		Expect(search.Terms(`Glaze "cone" glaze`)).To(Equal([]string{"glaze", "cone"}))
	})
})
