package booking

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-booking/internal/timeutil"
)

const dateLayout = "2006-01-02"

// FormatSlotID builds "{providerID}_{YYYY-MM-DD}_{HH:MM}". t must already be
// in clinic local time.
func FormatSlotID(providerID uuid.UUID, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s", providerID, t.Format(dateLayout), t.Format("15:04"))
}

// ParseSlotID splits a slot id back into its provider and start time in loc.
func ParseSlotID(id string, loc *time.Location) (uuid.UUID, time.Time, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return uuid.Nil, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidSlotID, id)
	}
	providerID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("%w: provider: %v", ErrInvalidSlotID, err)
	}
	day, err := time.ParseInLocation(dateLayout, parts[1], loc)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("%w: date: %v", ErrInvalidSlotID, err)
	}
	minutes, err := timeutil.ParseTime(parts[2])
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSlotID, err)
	}
	return providerID, atMinutes(day, minutes), nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func atMinutes(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, day.Location())
}

// buildSlots expands availability windows into fixed-length slots and marks
// the ones already taken. day must be midnight in clinic local time.
func buildSlots(providerID uuid.UUID, day time.Time, windows []ProviderAvailability, appts []Appointment, reservations []Reservation, now time.Time) ([]TimeSlot, error) {
	booked := make(map[int64]struct{}, len(appts))
	for _, a := range appts {
		if a.Status.HoldsSlot() {
			booked[a.StartsAt.Unix()] = struct{}{}
		}
	}
	held := make(map[int64]struct{}, len(reservations))
	for _, r := range reservations {
		if r.IsActive(now) {
			held[r.SlotTime.Unix()] = struct{}{}
		}
	}

	var slots []TimeSlot
	seen := make(map[string]struct{})
	for _, w := range windows {
		if !w.IsAvailable || w.SlotDurationMinutes <= 0 {
			continue
		}
		start, err := timeutil.ParseTime(w.StartTime)
		if err != nil {
			return nil, fmt.Errorf("availability start: %w", err)
		}
		end, err := timeutil.ParseTime(w.EndTime)
		if err != nil {
			return nil, fmt.Errorf("availability end: %w", err)
		}

		for m := start; m+w.SlotDurationMinutes <= end; m += w.SlotDurationMinutes {
			startsAt := atMinutes(day, m)
			id := FormatSlotID(providerID, startsAt)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			_, isBooked := booked[startsAt.Unix()]
			_, isHeld := held[startsAt.Unix()]
			slots = append(slots, TimeSlot{
				ID:          id,
				ProviderID:  providerID,
				Date:        day.Format(dateLayout),
				StartTime:   timeutil.FormatClock(m),
				EndTime:     timeutil.FormatClock(m + w.SlotDurationMinutes),
				StartsAt:    startsAt,
				IsAvailable: !isBooked && !isHeld && startsAt.After(now),
				IsReserved:  isHeld,
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].StartsAt.Before(slots[j].StartsAt) })
	return slots, nil
}
