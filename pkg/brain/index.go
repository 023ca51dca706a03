package brain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ryanlack616/howell-brain/pkg/search"
	"github.com/ryanlack616/howell-brain/pkg/tier"
)

const searchLimit = 50

// Search finds query across entities, sessions, pins and procedures. The
// index is rebuilt first if anything changed since the last build.
func (b *Brain) Search(ctx context.Context, query string) (search.Results, error) {
	b.mu.Lock()
	if err := b.ready(); err != nil {
		b.mu.Unlock()
		return search.Results{}, err
	}
	if b.dirty {
		if err := b.rebuildIndex(ctx); err != nil {
			b.mu.Unlock()
			return search.Results{}, err
		}
	}
	b.mu.Unlock()

	hits, err := b.index.Search(ctx, query, searchLimit)
	if err != nil {
		return search.Results{}, err
	}
	return search.Group(query, hits), nil
}

// rebuildIndex replaces the search index with the current stores. Callers
// hold mu.
func (b *Brain) rebuildIndex(ctx context.Context) error {
	docs, err := b.documents()
	if err != nil {
		return err
	}
	if err := b.index.Rebuild(ctx, docs); err != nil {
		return err
	}
	b.dirty = false
	b.logger.Debug("search index rebuilt", "documents", len(docs))
	return nil
}

func (b *Brain) documents() ([]search.Document, error) {
	var docs []search.Document

	for e := range b.entities.All() {
		docs = append(docs, search.Document{
			ID:     "entity:" + e.Name,
			Kind:   search.KindEntity,
			Title:  e.Name,
			Body:   e.Kind + "\n" + strings.Join(e.Observations, "\n"),
			Source: e.Name,
		})
	}

	if b.tiers != nil {
		c, err := b.tiers.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("reading tiers for index: %w", err)
		}
		for _, s := range c.Hot {
			docs = append(docs, sessionDocument(s, tier.Hot))
		}
		for _, s := range c.Cold {
			docs = append(docs, sessionDocument(s, tier.Cold))
		}
		for _, p := range c.Core {
			docs = append(docs, search.Document{
				ID:    "pin:" + p.Title,
				Kind:  search.KindPin,
				Title: p.Title,
				Body:  strings.TrimSpace(p.Text + "\n" + p.Reason),
				Tier:  string(tier.Core),
			})
		}
	}

	procs, err := b.procedures()
	if err != nil {
		return nil, err
	}
	return append(docs, procs...), nil
}

func sessionDocument(s tier.Session, t tier.Tier) search.Document {
	var body strings.Builder
	body.WriteString(s.Narrative)
	for _, l := range s.Learned {
		body.WriteString("\nLearned: ")
		body.WriteString(l)
	}
	return search.Document{
		ID:     string(t) + ":" + s.ID,
		Kind:   search.KindSession,
		Title:  s.Date.Format("2006-01-02") + " " + s.Title,
		Body:   body.String(),
		Source: s.ID,
		Tier:   string(t),
	}
}

// procedures reads the markdown notes kept under procedures/.
func (b *Brain) procedures() ([]search.Document, error) {
	entries, err := os.ReadDir(b.layout.Procedures)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing procedures: %w", err)
	}

	var docs []search.Document
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.layout.Procedures, e.Name()))
		if err != nil {
			b.logger.Warn("skipping unreadable procedure", "file", e.Name(), "error", err)
			continue
		}
		docs = append(docs, search.Document{
			ID:     "procedure:" + e.Name(),
			Kind:   search.KindProcedure,
			Title:  strings.TrimSuffix(e.Name(), ".md"),
			Body:   string(data),
			Source: e.Name(),
		})
	}
	return docs, nil
}
