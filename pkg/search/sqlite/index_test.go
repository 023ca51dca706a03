package sqlite_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ryanlack616/howell-brain/pkg/search"
	"github.com/ryanlack616/howell-brain/pkg/search/sqlite"
)

var _ = Describe("Index", func() {
	var (
		ctx context.Context
		idx *sqlite.Index
	)

	docs := []search.Document{
		{ID: "entity:Ryan", Kind: search.KindEntity, Title: "Ryan", Body: "person\nbuilds kilns", Source: "Ryan"},
		{ID: "entity:StullAtlas", Kind: search.KindEntity, Title: "StullAtlas", Body: "project\nglaze chemistry atlas"},
		{ID: "pin:Name", Kind: search.KindPin, Title: "Name", Body: "The user goes by Ryan", Tier: "core"},
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		idx, err = sqlite.Open(filepath.Join(GinkgoT().TempDir(), "index.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(idx.Close)
		Expect(idx.Rebuild(ctx, docs)).To(Succeed())
	})

	It("finds documents by word prefix", func() {
		hits, err := idx.Search(ctx, "chem", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].ID).To(Equal("entity:StullAtlas"))
		Expect(hits[0].Kind).To(Equal(search.KindEntity))
	})

	It("ranks title matches first", func() {
		hits, err := idx.Search(ctx, "ryan", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(2))
		Expect(hits[0].ID).To(Equal("entity:Ryan"))
		Expect(hits[1].Tier).To(Equal("core"))
	})

	It("treats query syntax as plain text", func() {
		hits, err := idx.Search(ctx, `kilns OR "NEAR(`, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(BeEmpty())
	})

	It("replaces the previous contents on rebuild", func() {
		Expect(idx.Rebuild(ctx, docs[:1])).To(Succeed())
		hits, err := idx.Search(ctx, "glaze", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(BeEmpty())
	})

	It("returns nothing for an empty query", func() {
		hits, err := idx.Search(ctx, "", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(BeNil())
	})
})
