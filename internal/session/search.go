package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/genzai-dev/genzai/internal/chat"
)

// Index provides full-text search over session titles and message text. The
// index is memory-only and rebuilt from the store on startup; the store is
// the source of truth.
type Index struct {
	mu  sync.Mutex
	idx bleve.Index
}

// NewIndex creates an empty in-memory search index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	sessionMapping := bleve.NewDocumentMapping()

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true
	idField.Index = true
	sessionMapping.AddFieldMappingsAt("session_id", idField)

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = standard.Name
	titleField.Store = false
	titleField.Index = true
	sessionMapping.AddFieldMappingsAt("title", titleField)

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	textField.Index = true
	sessionMapping.AddFieldMappingsAt("text", textField)

	indexMapping.DefaultMapping = sessionMapping
	return indexMapping
}

// Add indexes (or reindexes) a session.
func (x *Index) Add(session chat.ChatSession) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var texts []string
	for _, m := range session.Messages {
		if m.Text != "" {
			texts = append(texts, m.Text)
		}
	}
	doc := map[string]interface{}{
		"session_id": session.ID,
		"title":      session.Title,
		"text":       strings.Join(texts, "\n"),
	}
	return x.idx.Index(session.ID, doc)
}

// Search returns the ids of the top matching sessions, best first.
func (x *Index) Search(query string, limit int) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	result, err := x.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("session search failed: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Reset drops all indexed sessions.
func (x *Index) Reset() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.idx.Close(); err != nil {
		return fmt.Errorf("failed to close search index: %w", err)
	}
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to recreate search index: %w", err)
	}
	x.idx = idx
	return nil
}

// Close releases the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.idx.Close()
}
