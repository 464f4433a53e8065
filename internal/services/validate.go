package services

import (
	"strconv"
	"time"

	"github.com/alumnijourney/apiserver/internal/apperror"
)

const minGraduationYear = 1950

// fieldErrors collects per-field validation messages.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperror.NewValidationFields(f)
}

// checkGraduationYear accepts years from 1950 up to ten years past now.
func checkGraduationYear(fields fieldErrors, year *int, now time.Time) {
	if year == nil {
		return
	}
	maxYear := now.Year() + 10
	if *year < minGraduationYear || *year > maxYear {
		fields.add("graduation_year",
			"Graduation year must be between "+strconv.Itoa(minGraduationYear)+" and "+strconv.Itoa(maxYear)+".")
	}
}
