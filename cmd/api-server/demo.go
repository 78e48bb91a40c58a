package main

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-booking/internal/booking"
)

var demoDentists = []booking.Provider{
	{Name: "Dr. Maya Chen", Specialization: "Periodontist", Rating: 4.9},
	{Name: "Dr. Omar Haddad", Specialization: "General Dentistry", Rating: 4.7},
	{Name: "Dr. Sofia Alvarez", Specialization: "Orthodontist", Rating: 4.8},
	{Name: "Dr. Daniel Okafor", Specialization: "Endodontist", Rating: 4.6},
	{Name: "Dr. Hana Suzuki", Specialization: "Oral Surgeon", Rating: 4.5},
	{Name: "Dr. Lucas Moreau", Specialization: "Pediatric Dentist", Rating: 4.8},
	{Name: "Dr. Priya Raman", Specialization: "Prosthodontist", Rating: 4.4},
}

// seedDemo gives the in-memory store weekday hours for a handful of dentists
// so the API is usable without a database.
func seedDemo(repo *booking.MemoryRepository) {
	for _, d := range demoDentists {
		d.ID = uuid.New()
		repo.AddProvider(d)
		for day := time.Monday; day <= time.Friday; day++ {
			repo.AddAvailability(booking.ProviderAvailability{
				ProviderID:          d.ID,
				DayOfWeek:           int(day),
				StartTime:           "09:00",
				EndTime:             "17:00",
				SlotDurationMinutes: 30,
				IsAvailable:         true,
			})
		}
	}
}
