package cdl

import (
	"encoding/json"
	"fmt"
	"iter"
)

// PagesOf adapts an in-memory page list to the sequence form consumed by Resources.
func PagesOf(pages []*Page) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		for _, p := range pages {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Resources lazily flattens the entries of every page into resources.
// Entries without a resource are skipped. The sequence is single-pass; an
// error from the page source or from decoding a resource ends it.
func Resources(pages iter.Seq2[*Page, error]) iter.Seq2[*Resource, error] {
	return func(yield func(*Resource, error) bool) {
		for page, err := range pages {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, e := range page.Entries {
				if len(e.Resource) == 0 || string(e.Resource) == "null" {
					continue
				}
				var r Resource
				if err := json.Unmarshal(e.Resource, &r); err != nil {
					yield(nil, fmt.Errorf("decoding resource: %w", err))
					return
				}
				if !yield(&r, nil) {
					return
				}
			}
		}
	}
}
