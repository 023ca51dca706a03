package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ryanlack616/howell-brain/pkg/brain"
	"github.com/ryanlack616/howell-brain/pkg/config"
	"github.com/ryanlack616/howell-brain/pkg/logger"
	"github.com/ryanlack616/howell-brain/pkg/search"
	"github.com/ryanlack616/howell-brain/pkg/tier"
)

func newTestBrain(bootstrap bool) *brain.Brain {
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
	return b
}

func do(s *Server, method, path string, body any) (*http.Response, []byte) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, data
}

var _ = Describe("Server", func() {
	var s *Server

	BeforeEach(func() {
		var err error
		s, err = NewServer(Config{ListenAddr: ":0"}, newTestBrain(true), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a brain and logger", func() {
		_, err := NewServer(Config{}, nil, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("brain is required")))
	})

	It("answers ping", func() {
		resp, body := do(s, http.MethodGet, "/ping", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	It("records observations and relations", func() {
		resp, body := do(s, http.MethodPost, "/observations", ObservationRequest{Entity: "Ryan", Kind: "person", Text: "builds kilns"})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var obs brain.ObservationResult
		Expect(json.Unmarshal(body, &obs)).To(Succeed())
		Expect(obs.Added).To(BeTrue())

		resp, _ = do(s, http.MethodPost, "/relations", RelationRequest{From: "Ryan", Type: "builds", To: "StullAtlas"})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		resp, body = do(s, http.MethodGet, "/relations?entity=StullAtlas", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(`"count":1`))

		resp, body = do(s, http.MethodDelete, "/relations", RelationRequest{From: "Ryan", Type: "builds", To: "StullAtlas"})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var rel brain.RelationResult
		Expect(json.Unmarshal(body, &rel)).To(Succeed())
		Expect(rel.Changed).To(BeTrue())

		resp, body = do(s, http.MethodGet, "/entities/Ryan", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("builds kilns"))
	})

	It("maps errors to status codes", func() {
		resp, _ := do(s, http.MethodPost, "/observations", ObservationRequest{Entity: "Ryan"})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		resp, _ = do(s, http.MethodGet, "/entities/Nobody", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

		resp, _ = do(s, http.MethodGet, "/tiers/lukewarm", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		resp, _ = do(s, http.MethodPost, "/sessions", SessionRequest{})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("returns 503 before bootstrap", func() {
		cold, err := NewServer(Config{}, newTestBrain(false), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		resp, _ := do(cold, http.MethodGet, "/status", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})

	It("records sessions, evicts and renders tiers", func() {
		resp, _ := do(s, http.MethodPost, "/sessions", SessionRequest{Narrative: "Fixed the glaze import."})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		resp, body := do(s, http.MethodPost, "/sessions", SessionRequest{Narrative: "Wired the kiln log.", Pin: true, PinTitle: "Kiln"})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var sess brain.SessionResult
		Expect(json.Unmarshal(body, &sess)).To(Succeed())
		Expect(sess.Evicted).To(HaveLen(1))
		Expect(sess.Pin).NotTo(BeNil())

		resp, body = do(s, http.MethodGet, "/tiers/warm?format=markdown", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var tr TierResponse
		Expect(json.Unmarshal(body, &tr)).To(Succeed())
		Expect(tr.Tier).To(Equal(tier.Warm))
		Expect(tr.Contents.Warm).To(HaveLen(1))
		Expect(tr.Markdown).To(ContainSubstring("Fixed the glaze import."))
	})

	It("pins once per title", func() {
		resp, _ := do(s, http.MethodPost, "/pins", PinRequest{Title: "Name", Text: "Ryan"})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		resp, body := do(s, http.MethodPost, "/pins", PinRequest{Title: "Name", Text: "Ryan"})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(`"already_pinned":true`))
	})

	It("searches", func() {
		do(s, http.MethodPost, "/observations", ObservationRequest{Entity: "Ryan", Text: "fires cone 6"})

		resp, _ := do(s, http.MethodGet, "/search", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		resp, body := do(s, http.MethodGet, "/search?q=cone", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var res search.Results
		Expect(json.Unmarshal(body, &res)).To(Succeed())
		Expect(res.KnowledgeGraph).To(HaveLen(1))
	})

	It("saves a snapshot and reports status", func() {
		resp, _ := do(s, http.MethodPost, "/snapshot", SnapshotRequest{Note: "review"})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		resp, body := do(s, http.MethodGet, "/status", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var st brain.Status
		Expect(json.Unmarshal(body, &st)).To(Succeed())
		Expect(st.Snapshot).NotTo(BeNil())
		Expect(st.Snapshot.Note).To(Equal("review"))
	})

	It("serves the last bootstrap and rebuilds on request", func() {
		resp, body := do(s, http.MethodGet, "/bootstrap", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(`"stage":"READY"`))

		resp, _ = do(s, http.MethodGet, "/bootstrap?refresh=true", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})
