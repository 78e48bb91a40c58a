package chatbot

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/dental-booking/internal/booking"
)

// ProviderLister is the part of the booking service the directory reads.
type ProviderLister interface {
	ListProviders(ctx context.Context) ([]booking.Provider, error)
}

// Directory picks which dentist to suggest for a specialization.
type Directory struct {
	providers ProviderLister
}

func NewDirectory(providers ProviderLister) *Directory {
	return &Directory{providers: providers}
}

// Suggest returns the highest rated dentist for the specialization, falling
// back to general dentistry and then to anyone. Rejected dentists are
// skipped. The second result is false when nobody is left.
func (d *Directory) Suggest(ctx context.Context, specialization string, rejected []uuid.UUID) (booking.Provider, bool, error) {
	all, err := d.providers.ListProviders(ctx)
	if err != nil {
		return booking.Provider{}, false, err
	}

	candidates := make([]booking.Provider, 0, len(all))
	for _, p := range all {
		if !slices.Contains(rejected, p.ID) {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Rating > candidates[j].Rating
	})

	for _, want := range []string{specialization, SpecializationGeneral} {
		if want == "" {
			continue
		}
		for _, p := range candidates {
			if strings.EqualFold(p.Specialization, want) {
				return p, true, nil
			}
		}
	}
	if len(candidates) > 0 {
		return candidates[0], true, nil
	}
	return booking.Provider{}, false, nil
}
