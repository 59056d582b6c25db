package calendar

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/5Dev24/EqualBot/internal/domain"
)

// monthLengths always treats February as 29 days, so a Feb 29 birthday is
// never rejected.
var monthLengths = [12]int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// MonthLength returns the number of days in the given month, or 0 for a
// month outside 1..12.
func MonthLength(month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	return monthLengths[month-1]
}

// Change describes the outcome of SetBirthday.
type Change struct {
	Unchanged bool
	Moved     bool
	OldMonth  int
	OldDay    int
}

// Service keeps the per-day occupancy counts of all stored birthdays and
// writes record changes through to the repo. It is built once at startup and
// mutated in place under the event handler's lock.
type Service struct {
	repo      domain.BirthdayRepo
	log       zerolog.Logger
	occupancy [12][31]int
}

// Load builds the calendar from the persisted records. Any invalid stored
// record aborts startup: the calendar must never start inconsistent.
func Load(ctx context.Context, repo domain.BirthdayRepo, logger zerolog.Logger) (*Service, error) {
	s := &Service{repo: repo, log: logger}
	records, err := repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load birthdays: %w", err)
	}
	for _, b := range records {
		if b.Month < 1 || b.Month > 12 {
			return nil, &domain.CorruptStateError{
				Source: "birthday",
				Err:    fmt.Errorf("user %s: month %d out of range 1..12", b.UserID, b.Month),
			}
		}
		if b.Day < 1 || b.Day > monthLengths[b.Month-1] {
			return nil, &domain.CorruptStateError{
				Source: "birthday",
				Err:    fmt.Errorf("user %s: day %d out of range 1..%d", b.UserID, b.Day, monthLengths[b.Month-1]),
			}
		}
		s.occupancy[b.Month-1][b.Day-1]++
	}
	return s, nil
}

// HasBirthday reports whether anyone has a birthday on the given day.
func (s *Service) HasBirthday(month, day int) bool {
	if month < 1 || month > 12 || day < 1 || day > monthLengths[month-1] {
		return false
	}
	return s.occupancy[month-1][day-1] > 0
}

// SetBirthday validates and stores a user's birthday, moving the occupancy
// count if the user already had one.
func (s *Service) SetBirthday(ctx context.Context, userID string, month, day int) (Change, error) {
	if month < 1 || month > 12 {
		return Change{}, &domain.ValidationError{
			Field:  "month",
			Reason: "the month must be between 1 and 12",
		}
	}
	if day < 1 || day > monthLengths[month-1] {
		return Change{}, &domain.ValidationError{
			Field:  "day",
			Reason: fmt.Sprintf("the day must be between 1 and %d", monthLengths[month-1]),
		}
	}

	old, had, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Change{}, fmt.Errorf("load birthday: %w", err)
	}
	if had && old.Month == month && old.Day == day {
		return Change{Unchanged: true}, nil
	}

	if err := s.repo.Save(ctx, domain.Birthday{UserID: userID, Month: month, Day: day}); err != nil {
		return Change{}, fmt.Errorf("save birthday: %w", err)
	}

	s.occupancy[month-1][day-1]++
	if had {
		s.occupancy[old.Month-1][old.Day-1]--
		return Change{Moved: true, OldMonth: old.Month, OldDay: old.Day}, nil
	}
	return Change{}, nil
}
