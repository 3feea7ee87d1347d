package cache

import (
	"fmt"

	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/replace"
)

// Capture copies the replacements of store and the diagnostics into a
// Result.
func Capture(rounds int, store *replace.Store, diags []diag.Diagnostic) Result {
	r := Result{
		Rounds:       rounds,
		Replacements: make(map[string][]replace.Replacement),
		Diagnostics:  append([]diag.Diagnostic(nil), diags...),
	}
	for _, p := range store.Files() {
		r.Replacements[p] = append([]replace.Replacement(nil), store.For(p)...)
	}
	return r
}

// Restore refills store and bag from r. Both are reset first.
func (r Result) Restore(store *replace.Store, bag *diag.Bag) error {
	store.Reset()
	bag.Reset()
	for path, reps := range r.Replacements {
		if err := store.AddAll(reps); err != nil {
			return fmt.Errorf("restoring replacements of %s: %w", path, err)
		}
	}
	for _, d := range r.Diagnostics {
		bag.Report(d)
	}
	return nil
}
