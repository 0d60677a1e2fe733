package index

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/surgebase/porter2"
	"github.com/tidwall/buntdb"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/types"
)

// MaxFullTextToken bounds a query to its first N tokens, matching the
// spec's MAX_FULLTEXT_TOKEN.
const MaxFullTextToken = 100

// FullTextColumn names one of the searchable (table, column) pairs.
type FullTextColumn string

const (
	ColumnTextData     FullTextColumn = "text.data"
	ColumnTextEnData   FullTextColumn = "text.en_data"
	ColumnImagePrompt  FullTextColumn = "image.prompt"
)

// FullTextHit is one document's match across a single column search: the
// owning entity, the raw multi-token score, and (in highlight mode) the
// best snippet.
type FullTextHit struct {
	Entity  types.EntityID
	Column  FullTextColumn
	Score   float64
	Snippet string
}

type posting struct {
	Entity types.EntityID
	Count  int
}

type fulltextDoc struct {
	Entity types.EntityID `json:"entity"`
	Column FullTextColumn `json:"column"`
	Text   string         `json:"text"`
	Stems  []string       `json:"stems"`
}

// fulltextIndex is a stemmed inverted index over entity columns. Stemming
// uses the same porter2 algorithm the rest of this codebase's ancestry
// uses for its own semantic search index, tokenization split on
// non-letter/digit runes the same way.
type fulltextIndex struct {
	db *buntdb.DB

	mu      sync.RWMutex
	docs    map[string]*fulltextDoc           // key: column+":"+entity.String()
	posting map[FullTextColumn]map[string][]*posting // column -> stem -> postings
}

func newFulltextIndex(db *buntdb.DB) *fulltextIndex {
	return &fulltextIndex{
		db:      db,
		docs:    map[string]*fulltextDoc{},
		posting: map[FullTextColumn]map[string][]*posting{},
	}
}

func docKey(column FullTextColumn, entity types.EntityID) string {
	return string(column) + ":" + entity.String()
}

func (f *fulltextIndex) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("ft:*", func(key, value string) bool {
			var d fulltextDoc
			if err := json.Unmarshal([]byte(value), &d); err == nil {
				f.index(&d)
			}
			return true
		})
	})
}

// Tokenize splits on runs of non-letter/non-digit characters and
// lowercases, matching the tokenizer shape the corpus already uses for
// its own semantic index.
func Tokenize(s string) []string {
	var words []string
	var cur strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
		} else if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	return words
}

func stemAll(words []string) []string {
	stems := make([]string, len(words))
	for i, w := range words {
		stems[i] = porter2.Stem(w)
	}
	return stems
}

func (f *fulltextIndex) index(d *fulltextDoc) {
	key := docKey(d.Column, d.Entity)
	f.removeLocked(key)
	f.docs[key] = d

	counts := map[string]int{}
	for _, s := range d.Stems {
		counts[s]++
	}
	col, ok := f.posting[d.Column]
	if !ok {
		col = map[string][]*posting{}
		f.posting[d.Column] = col
	}
	for stem, count := range counts {
		col[stem] = append(col[stem], &posting{Entity: d.Entity, Count: count})
	}
}

func (f *fulltextIndex) removeLocked(key string) {
	old, ok := f.docs[key]
	if !ok {
		return
	}
	delete(f.docs, key)
	col := f.posting[old.Column]
	for stem := range uniqueStrings(old.Stems) {
		postings := col[stem]
		out := postings[:0]
		for _, p := range postings {
			if p.Entity != old.Entity {
				out = append(out, p)
			}
		}
		col[stem] = out
	}
}

func uniqueStrings(s []string) map[string]struct{} {
	m := make(map[string]struct{}, len(s))
	for _, v := range s {
		m[v] = struct{}{}
	}
	return m
}

// IndexDocument (re)indexes the text of one entity's column. Passing an
// empty text removes it from the index.
func (f *fulltextIndex) IndexDocument(ctx context.Context, entity types.EntityID, column FullTextColumn, text string) error {
	words := Tokenize(text)
	d := &fulltextDoc{Entity: entity, Column: column, Text: text, Stems: stemAll(words)}
	data, err := json.Marshal(d)
	if err != nil {
		return cberrors.Permanentf("index.IndexDocument", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("ft:"+docKey(column, entity), string(data), nil)
		return err
	}); err != nil {
		return cberrors.Transientf("index.IndexDocument", err)
	}
	f.index(d)
	return nil
}

// Remove drops every column belonging to entity.
func (f *fulltextIndex) Remove(ctx context.Context, entity types.EntityID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, col := range []FullTextColumn{ColumnTextData, ColumnTextEnData, ColumnImagePrompt} {
		key := docKey(col, entity)
		if _, ok := f.docs[key]; !ok {
			continue
		}
		if err := f.db.Update(func(tx *buntdb.Tx) error {
			_, err := tx.Delete("ft:" + key)
			if err == buntdb.ErrNotFound {
				return nil
			}
			return err
		}); err != nil {
			return cberrors.Transientf("index.Remove", err)
		}
		f.removeLocked(key)
	}
	return nil
}

// Search scores every document in columns against tokens by summed term
// frequency (multi-token score mode): one score contribution per matching
// query token, clipped to MaxFullTextToken tokens.
func (f *fulltextIndex) Search(ctx context.Context, tokens []string, columns []FullTextColumn) ([]FullTextHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, cberrors.NewCancelled("index.Search")
	}
	if len(tokens) > MaxFullTextToken {
		tokens = tokens[:MaxFullTextToken]
	}
	stems := stemAll(tokens)

	f.mu.RLock()
	defer f.mu.RUnlock()

	scores := map[string]*FullTextHit{}
	for _, column := range columns {
		col := f.posting[column]
		for _, stem := range stems {
			postings, weight := col[stem], 1.0
			if len(postings) == 0 {
				if near, ok := nearestStem(stem, col); ok {
					postings, weight = col[near], fuzzyDiscount
				}
			}
			for _, p := range postings {
				key := docKey(column, p.Entity)
				hit, ok := scores[key]
				if !ok {
					hit = &FullTextHit{Entity: p.Entity, Column: column}
					scores[key] = hit
				}
				hit.Score += weight * float64(p.Count)
			}
		}
	}

	out := make([]FullTextHit, 0, len(scores))
	for _, h := range scores {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Highlight returns the best single snippet and score for entity/column
// against tokens. The stored text is tokenized into lowercased words and
// scanned in windows of up to 12 words; a window scores one point per word
// whose stem matches a query stem, repeats included. The first
// highest-scoring window wins and is returned as its words joined by single
// spaces, so the snippet is not a verbatim slice of the original text.
func (f *fulltextIndex) Highlight(entity types.EntityID, column FullTextColumn, tokens []string) (string, float64) {
	f.mu.RLock()
	doc, ok := f.docs[docKey(column, entity)]
	f.mu.RUnlock()
	if !ok {
		return "", 0
	}

	wantStems := uniqueStrings(stemAll(tokens))
	words := Tokenize(doc.Text)
	const window = 12

	bestScore := 0.0
	bestStart, bestEnd := 0, len(words)
	if len(words) > window {
		bestEnd = window
	}
	for start := 0; start+1 <= len(words); start++ {
		end := start + window
		if end > len(words) {
			end = len(words)
		}
		score := 0.0
		for _, w := range words[start:end] {
			if _, ok := wantStems[porter2.Stem(w)]; ok {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestStart, bestEnd = start, end
		}
		if end == len(words) {
			break
		}
	}

	return strings.Join(words[bestStart:bestEnd], " "), bestScore
}
