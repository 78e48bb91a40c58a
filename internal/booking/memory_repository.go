package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process. It applies the same
// uniqueness rules as the Postgres schema and backs dev mode and tests.
type MemoryRepository struct {
	mu           sync.Mutex
	providers    map[uuid.UUID]Provider
	availability []ProviderAvailability
	appointments map[uuid.UUID]*Appointment
	reservations map[uuid.UUID]*Reservation
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		providers:    make(map[uuid.UUID]Provider),
		appointments: make(map[uuid.UUID]*Appointment),
		reservations: make(map[uuid.UUID]*Reservation),
	}
}

func (r *MemoryRepository) AddProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID] = p
}

func (r *MemoryRepository) AddAvailability(a ProviderAvailability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.availability = append(r.availability, a)
}

// PutAppointment stores a copy of a as-is. Used for fixtures.
func (r *MemoryRepository) PutAppointment(a Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := cloneAppointment(a)
	r.appointments[a.ID] = &cp
}

func (r *MemoryRepository) ListProviders(_ context.Context) ([]Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) GetProvider(_ context.Context, id uuid.UUID) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListAvailability(_ context.Context, providerID uuid.UUID, dayOfWeek int) ([]ProviderAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ProviderAvailability
	for _, a := range r.availability {
		if a.ProviderID == providerID && a.DayOfWeek == dayOfWeek && a.IsAvailable {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListAppointmentsBetween(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.ProviderID == providerID && !a.StartsAt.Before(from) && a.StartsAt.Before(to) {
			out = append(out, cloneAppointment(*a))
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListActiveReservations(_ context.Context, providerID uuid.UUID, from, to, now time.Time) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reservation
	for _, res := range r.reservations {
		if res.ProviderID == providerID && res.IsActive(now) && !res.SlotTime.Before(from) && res.SlotTime.Before(to) {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *MemoryRepository) FindSlotAppointment(_ context.Context, providerID uuid.UUID, startsAt time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a := r.slotAppointment(providerID, startsAt); a != nil {
		cp := cloneAppointment(*a)
		return &cp, nil
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) slotAppointment(providerID uuid.UUID, startsAt time.Time) *Appointment {
	for _, a := range r.appointments {
		if a.ProviderID == providerID && a.StartsAt.Equal(startsAt) && a.Status.HoldsSlot() {
			return a
		}
	}
	return nil
}

func (r *MemoryRepository) FindActiveReservation(_ context.Context, providerID uuid.UUID, slotTime, now time.Time) (*Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res := r.activeReservation(providerID, slotTime, now); res != nil {
		cp := *res
		return &cp, nil
	}
	return nil, ErrReservationNotFound
}

func (r *MemoryRepository) activeReservation(providerID uuid.UUID, slotTime, now time.Time) *Reservation {
	for _, res := range r.reservations {
		if res.ProviderID == providerID && res.SlotTime.Equal(slotTime) && res.IsActive(now) {
			return res
		}
	}
	return nil
}

func (r *MemoryRepository) InsertReservation(_ context.Context, res Reservation, now time.Time) (*Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cur := range r.reservations {
		if cur.ProviderID != res.ProviderID || !cur.SlotTime.Equal(res.SlotTime) || cur.Status != ReservationReserved {
			continue
		}
		if !cur.ExpiresAt.After(now) {
			cur.Status = ReservationExpired
			continue
		}
		return nil, ErrSlotConflict
	}

	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if _, exists := r.reservations[res.ID]; exists {
		return nil, ErrSlotConflict
	}
	res.Status = ReservationReserved
	res.CreatedAt = now
	r.reservations[res.ID] = &res
	cp := res
	return &cp, nil
}

func (r *MemoryRepository) ExtendReservation(_ context.Context, id uuid.UUID, expiresAt time.Time) (*Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok || res.Status != ReservationReserved {
		return nil, ErrReservationNotFound
	}
	res.ExpiresAt = expiresAt
	cp := *res
	return &cp, nil
}

func (r *MemoryRepository) GetReservation(_ context.Context, id uuid.UUID) (*Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *MemoryRepository) ExpireSlotReservations(_ context.Context, providerID uuid.UUID, slotTime time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, res := range r.reservations {
		if res.ProviderID == providerID && res.SlotTime.Equal(slotTime) && res.Status != ReservationExpired {
			res.Status = ReservationExpired
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ExpireStaleReservations(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, res := range r.reservations {
		if res.Status == ReservationReserved && !res.ExpiresAt.After(now) {
			res.Status = ReservationExpired
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ConfirmReservation(_ context.Context, reservationID uuid.UUID, appt Appointment, now time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[reservationID]
	if !ok {
		return nil, ErrReservationNotFound
	}
	if !res.IsActive(now) {
		for _, a := range r.appointments {
			if a.ReservationID != nil && *a.ReservationID == reservationID {
				cp := cloneAppointment(*a)
				return &cp, nil
			}
		}
		return nil, ErrReservationExpired
	}
	if r.slotAppointment(appt.ProviderID, appt.StartsAt) != nil {
		return nil, ErrSlotConflict
	}

	res.Status = ReservationConsumed
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	rid := reservationID
	appt.ReservationID = &rid
	appt.CreatedAt = now
	appt.UpdatedAt = now
	cp := cloneAppointment(appt)
	r.appointments[appt.ID] = &cp
	out := cloneAppointment(appt)
	return &out, nil
}

func (r *MemoryRepository) GetAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := cloneAppointment(*a)
	return &cp, nil
}

func (r *MemoryRepository) ListPatientAppointments(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			out = append(out, cloneAppointment(*a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out, nil
}

func (r *MemoryRepository) CancelAppointment(_ context.Context, id uuid.UUID, cancelledAt time.Time, reason *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != StatusUpcoming {
		return nil, ErrInvalidStatusTransition
	}
	a.Status = StatusCancelled
	at := cancelledAt
	a.CancelledAt = &at
	a.CancellationReason = reason
	a.UpdatedAt = cancelledAt
	cp := cloneAppointment(*a)
	return &cp, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrInvalidStatusTransition
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := cloneAppointment(*a)
	return &cp, nil
}

func (r *MemoryRepository) BookingReferenceExists(_ context.Context, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.BookingReference == ref {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) GetAppointmentDocuments(_ context.Context, appointmentID uuid.UUID) ([]DocumentReference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[appointmentID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return append([]DocumentReference(nil), a.Documents...), nil
}

func (r *MemoryRepository) AppendDocuments(_ context.Context, appointmentID uuid.UUID, docs []DocumentReference) ([]DocumentReference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[appointmentID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.Documents = mergeDocuments(a.Documents, docs)
	return append([]DocumentReference(nil), a.Documents...), nil
}

// mergeDocuments appends incoming entries not already present by id.
func mergeDocuments(existing, incoming []DocumentReference) []DocumentReference {
	seen := make(map[uuid.UUID]struct{}, len(existing))
	out := append([]DocumentReference(nil), existing...)
	for _, d := range existing {
		seen[d.ID] = struct{}{}
	}
	for _, d := range incoming {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}

func cloneAppointment(a Appointment) Appointment {
	a.Documents = append([]DocumentReference(nil), a.Documents...)
	return a
}
