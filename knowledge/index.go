package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	ChunkSize    = 800
	ChunkOverlap = 100
)

type chunk struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Index is an in-memory BM25 index over chunked documents.
type Index struct {
	mu       sync.RWMutex
	bleve    bleve.Index
	splitter textsplitter.TextSplitter
	chunks   map[string]chunk
}

func NewIndex(chunkSize, chunkOverlap int) (*Index, error) {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = min(ChunkOverlap, chunkSize/2)
	}
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge index: %w", err)
	}
	return &Index{
		bleve: index,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		chunks: make(map[string]chunk),
	}, nil
}

// AddDocument splits text into chunks and indexes each as id#n.
func (x *Index) AddDocument(id, title, text string) (int, error) {
	parts, err := x.splitter.SplitText(text)
	if err != nil {
		return 0, fmt.Errorf("failed to split %s: %w", id, err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for i, p := range parts {
		c := chunk{Title: title, Text: p}
		key := fmt.Sprintf("%s#%d", id, i)
		if err := x.bleve.Index(key, c); err != nil {
			return i, fmt.Errorf("failed to index %s: %w", key, err)
		}
		x.chunks[key] = c
	}
	return len(parts), nil
}

// LoadDir indexes every .md and .txt file under dir. The file name without
// extension is the document title.
func (x *Index) LoadDir(dir string) (int, error) {
	docs := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if d.IsDir() || (ext != ".md" && ext != ".txt") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, _ := filepath.Rel(dir, path)
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, err := x.AddDocument(rel, title, string(data)); err != nil {
			return err
		}
		docs++
		return nil
	})
	if err != nil {
		return docs, err
	}
	log.Info().Str("dir", dir).Int("documents", docs).Msg("loaded knowledge base")
	return docs, nil
}

func (x *Index) Search(_ context.Context, query string, topk int) (Result, error) {
	if topk <= 0 {
		topk = 3
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), topk, 0, false)

	x.mu.RLock()
	defer x.mu.RUnlock()
	res, err := x.bleve.Search(req)
	if err != nil {
		return Result{}, fmt.Errorf("knowledge search failed: %w", err)
	}
	out := Result{Query: query, Items: make([]Item, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		c := x.chunks[hit.ID]
		out.Items = append(out.Items, Item{ID: hit.ID, Title: c.Title, Text: c.Text, Score: hit.Score})
	}
	return out, nil
}

func (x *Index) Close() error {
	return x.bleve.Close()
}
