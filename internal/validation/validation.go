// Package validation holds the stateless checks run before a booking, upload
// or cancellation touches storage. Every check returns a Result; none of them
// return errors, so callers can render the messages inline.
package validation

import (
	"fmt"
	"mime"
	"net/mail"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	MaxFileSize        = 10 << 20
	DefaultMaxFiles    = 5
	MaxSymptomsLength  = 1000
	MaxHistoryLength   = 2000
	MinPhoneDigits     = 10
	MaxPhoneDigits     = 15
	MaxBookingAheadMon = 6
	CancellationCutoff = time.Hour
)

const (
	MsgSlotInPast        = "Selected time slot is in the past"
	MsgSlotTooFar        = "Cannot book appointments more than 6 months in advance"
	MsgCancelPast        = "Cannot cancel past appointments"
	MsgCancelWithinHour  = "Appointments cannot be cancelled within 1 hour of the scheduled time"
	MsgFileEmpty         = "File is empty"
	MsgFileTooLarge      = "File size exceeds 10MB limit"
	MsgFileType          = "Only PDF and image files are allowed"
	MsgUncertaintyNote   = "Uncertainty note is required when cause is not identified"
	MsgPhoneInvalid      = "Phone number must contain 10 to 15 digits"
	MsgSymptomsTooLong   = "Symptoms must be 1000 characters or fewer"
	MsgHistoryTooLong    = "Medical history must be 2000 characters or fewer"
	MsgEmailInvalid      = "Email address is invalid"
	MsgAppointmentNeeded = "Appointment time is required"
)

var phoneChars = regexp.MustCompile(`^\+?[0-9\s\-().]+$`)

type Result struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *Result) add(msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
}

func ok() Result { return Result{IsValid: true} }

// Message joins all errors into one line.
func (r Result) Message() string {
	return strings.Join(r.Errors, "; ")
}

type FileInfo struct {
	Name        string
	Size        int64
	ContentType string
}

type FileOptions struct {
	MaxFiles         int // DefaultMaxFiles when zero
	CurrentFileCount int
}

// ValidateFile checks a single upload. A count violation is reported alone.
func ValidateFile(f FileInfo, opts FileOptions) Result {
	res := ok()

	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if opts.CurrentFileCount >= maxFiles {
		res.add(fmt.Sprintf("Maximum %d files allowed", maxFiles))
		return res
	}

	if !allowedType(contentType(f)) {
		res.add(MsgFileType)
	}
	if f.Size > MaxFileSize {
		res.add(MsgFileTooLarge)
	}
	if f.Size <= 0 {
		res.add(MsgFileEmpty)
	}

	return res
}

// ValidateFiles checks a batch, counting each file toward the limit in turn.
func ValidateFiles(files []FileInfo, opts FileOptions) Result {
	res := ok()
	for i, f := range files {
		r := ValidateFile(f, FileOptions{MaxFiles: opts.MaxFiles, CurrentFileCount: opts.CurrentFileCount + i})
		for _, e := range r.Errors {
			res.add(fmt.Sprintf("%s: %s", f.Name, e))
		}
	}
	return res
}

func contentType(f FileInfo) string {
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if ct == "" || ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name))); byExt != "" {
			ct = byExt
		}
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

func allowedType(ct string) bool {
	return ct == "application/pdf" || strings.HasPrefix(ct, "image/")
}

type BookingData struct {
	PatientID       string
	DentistID       string
	Phone           string
	Symptoms        string
	MedicalHistory  string
	AppointmentTime time.Time
	// CauseIdentified is nil when the question was never asked.
	CauseIdentified *bool
	UncertaintyNote string
}

// ValidateBookingData reports one error per missing or invalid field.
func ValidateBookingData(d BookingData, now time.Time) Result {
	res := ok()

	if strings.TrimSpace(d.PatientID) == "" {
		res.add("Patient ID is required")
	}
	if strings.TrimSpace(d.DentistID) == "" {
		res.add("Dentist is required")
	}

	if strings.TrimSpace(d.Phone) == "" {
		res.add("Phone number is required")
	} else if r := ValidatePhoneNumber(d.Phone); !r.IsValid {
		res.Errors = append(res.Errors, r.Errors...)
		res.IsValid = false
	}

	if r := ValidateSymptoms(d.Symptoms); !r.IsValid {
		res.Errors = append(res.Errors, r.Errors...)
		res.IsValid = false
	}

	if d.AppointmentTime.IsZero() {
		res.add(MsgAppointmentNeeded)
	} else if r := ValidateTimeSlot(d.AppointmentTime, now); !r.IsValid {
		res.Errors = append(res.Errors, r.Errors...)
		res.IsValid = false
	}

	if len([]rune(d.MedicalHistory)) > MaxHistoryLength {
		res.add(MsgHistoryTooLong)
	}

	if d.CauseIdentified != nil && !*d.CauseIdentified && strings.TrimSpace(d.UncertaintyNote) == "" {
		res.add(MsgUncertaintyNote)
	}

	return res
}

func ValidatePhoneNumber(phone string) Result {
	res := ok()
	p := strings.TrimSpace(phone)
	if !phoneChars.MatchString(p) {
		res.add(MsgPhoneInvalid)
		return res
	}
	digits := 0
	for _, c := range p {
		if c >= '0' && c <= '9' {
			digits++
		}
	}
	if digits < MinPhoneDigits || digits > MaxPhoneDigits {
		res.add(MsgPhoneInvalid)
	}
	return res
}

func ValidateSymptoms(symptoms string) Result {
	res := ok()
	s := strings.TrimSpace(symptoms)
	if s == "" {
		res.add("Symptoms are required")
		return res
	}
	if len([]rune(s)) > MaxSymptomsLength {
		res.add(MsgSymptomsTooLong)
	}
	return res
}

func ValidateEmail(email string) Result {
	res := ok()
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		res.add(MsgEmailInvalid)
	}
	return res
}

// ValidateTimeSlot accepts slots strictly after now and no further out than
// six calendar months.
func ValidateTimeSlot(slot, now time.Time) Result {
	res := ok()
	if !slot.After(now) {
		res.add(MsgSlotInPast)
		return res
	}
	if slot.After(now.AddDate(0, MaxBookingAheadMon, 0)) {
		res.add(MsgSlotTooFar)
	}
	return res
}

// ValidateCancellationTiming only accepts cancellations made strictly more
// than an hour before the appointment starts.
func ValidateCancellationTiming(appointment, now time.Time) Result {
	res := ok()
	if !appointment.After(now) {
		res.add(MsgCancelPast)
		return res
	}
	if appointment.Sub(now) <= CancellationCutoff {
		res.add(MsgCancelWithinHour)
	}
	return res
}
