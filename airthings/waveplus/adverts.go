package waveplus

import (
	"sync"

	"github.com/alepar/airthings/airthings"
)

// scanResults collects one scan window. Backends may still deliver
// advertisements after the window closed, those are dropped.
type scanResults struct {
	mu   sync.Mutex
	seen map[string]int
	ads  []airthings.Advertisement
	done bool
}

// add keeps the latest advertisement per address, in order of first sighting.
func (r *scanResults) add(ad airthings.Advertisement) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return
	}
	if r.seen == nil {
		r.seen = map[string]int{}
	}
	if i, ok := r.seen[ad.Address]; ok {
		r.ads[i] = ad
		return
	}
	r.seen[ad.Address] = len(r.ads)
	r.ads = append(r.ads, ad)
}

// finish closes the window and returns a copy the caller owns.
func (r *scanResults) finish() []airthings.Advertisement {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.done = true
	return append([]airthings.Advertisement(nil), r.ads...)
}
