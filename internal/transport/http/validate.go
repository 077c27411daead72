package http

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// parseStudentPath splits /students/{id}/{resource} and returns the two
// variable segments.
func parseStudentPath(path string) (studentID, resource string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "students" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
