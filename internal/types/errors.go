package types

import (
	"errors"
	"fmt"
)

// InvalidInputError represents a caller-supplied value that cannot be processed
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid input in %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid input: %s", e.Message)
}

// FieldIncidentLocation names the incident location in InvalidInputError.
const FieldIncidentLocation = "incident_location"

// ErrLocationRequired is returned when policy requires an incident location and none is usable.
var ErrLocationRequired = &InvalidInputError{Field: FieldIncidentLocation, Message: "a valid GeoJSON Point is required"}

// IsInvalidInput reports whether err carries an InvalidInputError.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}
