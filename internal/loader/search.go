package loader

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	fuzzysearch "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/nearby/internal/domain"
	"github.com/sahilm/fuzzy"
)

// maxSuggestions caps the "did you mean" list of an offline search
const maxSuggestions = 5

// SearchRequest describes one search
type SearchRequest struct {
	Query    string
	Filters  domain.Filters
	Location *domain.Coordinates
	Offline  bool
}

// SearchResult carries search results and their provenance
type SearchResult struct {
	Results     []json.RawMessage
	Suggestions []string
	Total       int
	FromCache   bool // Served from the search cache
	Local       bool // Ranked locally over cached records
}

// Search serves a fresh cached response, then the directory search, then a
// local fuzzy search over cached businesses and events.
func (l *Loader) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return SearchResult{}, nil
	}
	loc := l.location(req.Location)

	entry, err := l.store.GetSearchResults(query, loc)
	if err != nil {
		l.logger.Warn("failed to read search cache", "error", err)
	}
	if entry != nil {
		return SearchResult{Results: entry.Results, Total: len(entry.Results), FromCache: true}, nil
	}

	if !req.Offline && l.client != nil {
		filters := req.Filters
		if filters.Near == nil {
			filters.Near = loc
		}

		resp, err := l.client.Search(ctx, query, filters)
		if err == nil {
			if err := l.store.CacheSearchResults(query, resp.Results, loc); err != nil {
				l.logger.Error("failed to cache search results", "error", err)
			}
			return SearchResult{Results: resp.Results, Suggestions: resp.Suggestions, Total: resp.Total}, nil
		}
		if isOffline(err) {
			l.logger.Info("directory offline, searching locally", "query", query)
		} else {
			l.logger.Warn("search failed, searching locally", "error", err, "query", query)
		}
	}

	return l.searchLocal(query, loc), nil
}

// recordIndex implements sahilm/fuzzy.Source over record names
type recordIndex struct {
	records []domain.Record
	names   []string // Lowercase display names
}

func (idx *recordIndex) String(i int) string { return idx.names[i] }

func (idx *recordIndex) Len() int { return len(idx.records) }

func (l *Loader) buildIndex(loc *domain.Coordinates) *recordIndex {
	idx := &recordIndex{}
	for _, kind := range []domain.Collection{domain.CollectionBusinesses, domain.CollectionEvents} {
		records, err := l.store.GetCollection(kind, loc)
		if err != nil {
			l.logger.Warn("failed to read cache for local search", "error", err, "kind", kind)
			continue
		}
		for _, r := range records {
			idx.records = append(idx.records, r)
			idx.names = append(idx.names, strings.ToLower(r.DisplayName()))
		}
	}
	return idx
}

func (l *Loader) searchLocal(query string, loc *domain.Coordinates) SearchResult {
	idx := l.buildIndex(loc)
	if idx.Len() == 0 {
		return SearchResult{Local: true}
	}

	matches := fuzzy.FindFrom(strings.ToLower(query), idx)

	matched := make([]domain.Record, len(matches))
	seen := make(map[int]bool, len(matches))
	for i, m := range matches {
		matched[i] = idx.records[m.Index]
		seen[m.Index] = true
	}

	l.logger.Debug("local search", "query", query, "indexed", idx.Len(), "matches", len(matches))
	return SearchResult{
		Results:     marshalRecords(matched),
		Suggestions: suggest(query, idx, seen),
		Total:       len(matched),
		Local:       true,
	}
}

// suggest returns names of unmatched records close to query by edit
// distance, checked against the whole name and each of its words.
func suggest(query string, idx *recordIndex, exclude map[int]bool) []string {
	q := strings.ToLower(query)
	maxDistance := max(1, utf8.RuneCountInString(q)/3)

	type candidate struct {
		name     string
		distance int
	}
	var candidates []candidate
	names := make(map[string]bool)

	for i, lower := range idx.names {
		if exclude[i] {
			continue
		}
		best := fuzzysearch.LevenshteinDistance(q, lower)
		for _, word := range strings.Fields(lower) {
			best = min(best, fuzzysearch.LevenshteinDistance(q, word))
		}
		if best > maxDistance {
			continue
		}
		name := idx.records[i].DisplayName()
		if names[name] {
			continue
		}
		names[name] = true
		candidates = append(candidates, candidate{name: name, distance: best})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	var out []string
	for _, c := range candidates {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, c.name)
	}
	return out
}
