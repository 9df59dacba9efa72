package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/models"
)

// Registration is the validated-input boundary payload coming from the
// excluded UI layer.
type Registration struct {
	FirstName string          `json:"name1"`
	LastName  string          `json:"name2,omitempty"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	Category  models.Category `json:"category"`
}

var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// Validate re-checks the invariants the UI layer is responsible for, so a
// misbehaving caller cannot corrupt the store. Validation failures are
// reported synchronously and never retried.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return fmt.Errorf("%w: first name is required", common.ErrValidationFailed)
	}
	if !emailShape.MatchString(r.Email) {
		return fmt.Errorf("%w: malformed email %q", common.ErrValidationFailed, r.Email)
	}
	if countDigits(r.Phone) < 10 {
		return fmt.Errorf("%w: phone needs at least 10 digits", common.ErrValidationFailed)
	}
	if !models.ValidCategory(r.Category) {
		return fmt.Errorf("%w: unknown category %q", common.ErrValidationFailed, r.Category)
	}
	return nil
}

// Submit validates the registration and saves it as a new client record,
// returning the assigned id.
func (s *Store) Submit(ctx context.Context, r Registration) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	rec := models.Client{
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		Email:     strings.TrimSpace(r.Email),
		Phone:     strings.TrimSpace(r.Phone),
		Category:  r.Category,
	}
	return s.Save(ctx, &rec)
}
