// Package phrasebook manages the search phrase queue that drives lead
// discovery. Phrases are grouped by product category; a used-phrase log
// keeps repeated runs from re-searching the same phrase.
package phrasebook

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Book maps a category to its search phrases.
type Book map[string][]string

var categories = map[string][]string{
	"womens_fashion":        {"sarees", "kurti", "lehenga", "fusion wear"},
	"mens_fashion":          {"oversized tshirt", "hoodie for men"},
	"kids_products":         {"organic baby clothes", "crochet toys"},
	"accessories_jewelry":   {"handmade jewelry", "leather wallet"},
	"home_kitchen":          {"wall shelf", "planters"},
	"beauty_personal_care":  {"skincare brand india", "herbal shampoo"},
	"gifts_and_other":       {"eco friendly gifts", "custom gift box"},
	"brand_philosophy_india": {"sustainable fashion", "zero waste store"},
}

var templates = []string{
	`"%s" inurl:shop -amazon -flipkart`,
	`"%s" online india inurl:store site:.in -amazon`,
	`"%s" buy online site:.in -flipkart -amazon`,
}

// Generate expands the built-in keyword catalog through the search
// templates, producing the auto-generated portion of the phrase queue.
func Generate() Book {
	book := make(Book, len(categories))
	for cat, kws := range categories {
		phrases := make([]string, 0, len(kws)*len(templates))
		for _, kw := range kws {
			for _, t := range templates {
				phrases = append(phrases, fmt.Sprintf(t, kw))
			}
		}
		book[cat] = phrases
	}
	return book
}

// Load reads a phrase book from the given JSON file. A missing file is
// an empty book; only a malformed file is an error.
func Load(path string) (Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Book{}, nil
		}
		return nil, fmt.Errorf("failed to read phrase file: %w", err)
	}

	var book Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("phrase file %s is not valid JSON: %w", path, err)
	}
	return book, nil
}

// Save writes the phrase book to path as indented JSON, matching the
// format the discovery script reads back.
func Save(path string, book Book) error {
	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadUsed reads the used-phrase log. Missing or corrupt logs yield an
// empty set; the log is a best-effort dedupe aid, never a hard failure.
func LoadUsed(path string) map[string]bool {
	used := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return used
	}

	var phrases []string
	if err := json.Unmarshal(data, &phrases); err != nil {
		return used
	}
	for _, p := range phrases {
		used[p] = true
	}
	return used
}

// RecordUsed merges phrases into the used-phrase log at path.
func RecordUsed(path string, phrases []string) error {
	used := LoadUsed(path)
	for _, p := range phrases {
		used[p] = true
	}

	all := make([]string, 0, len(used))
	for p := range used {
		all = append(all, p)
	}
	sort.Strings(all)

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Fresh combines manually curated phrases with the generated catalog
// and drops everything already in the used set. Category order within
// the result is deterministic; duplicates across the two sources are
// collapsed.
func Fresh(manual Book, used map[string]bool) Book {
	combined := Generate()
	for cat, phrases := range manual {
		combined[cat] = append(combined[cat], phrases...)
	}

	fresh := make(Book, len(combined))
	for cat, phrases := range combined {
		seen := make(map[string]bool, len(phrases))
		kept := make([]string, 0, len(phrases))
		for _, p := range phrases {
			if used[p] || seen[p] {
				continue
			}
			seen[p] = true
			kept = append(kept, p)
		}
		sort.Strings(kept)
		fresh[cat] = kept
	}
	return fresh
}
