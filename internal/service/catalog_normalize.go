package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"course-portal/internal/model"
)

const (
	placeholderName        = "Untitled Course"
	placeholderDescription = "Description unavailable."
)

var (
	errMissingCourseArray = errors.New("Catalog payload missing course array")
	errTrailingData       = errors.New("Catalog payload has trailing data")
)

// normalizeCatalog accepts either a bare course array or an object with a
// "courses" array and optional "version". Entries without a code are
// dropped, as are later duplicates of a code.
func normalizeCatalog(payload []byte) ([]model.Course, *string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, nil, errTrailingData
	}

	var items []any
	var version *string

	switch v := root.(type) {
	case []any:
		items = v
	case map[string]any:
		if courses, ok := v["courses"].([]any); ok {
			items = courses
		} else {
			return nil, nil, errMissingCourseArray
		}
		if s, ok := coerceString(v["version"]); ok && s != "" {
			version = &s
		}
	default:
		return nil, nil, errMissingCourseArray
	}

	seen := make(map[string]struct{}, len(items))
	courses := make([]model.Course, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		course := normalizeCourse(entry)
		if course.Code == "" {
			continue
		}
		if _, dup := seen[course.Code]; dup {
			continue
		}
		seen[course.Code] = struct{}{}
		courses = append(courses, course)
	}

	return courses, version, nil
}

func normalizeCourse(entry map[string]any) model.Course {
	code, _ := coerceString(entry["code"])

	name, ok := coerceString(entry["name"])
	if !ok || name == "" {
		name = placeholderName
	}

	description, ok := coerceString(entry["description"])
	if !ok || description == "" {
		description = placeholderDescription
	}

	return model.Course{
		Code:        strings.TrimSpace(code),
		Name:        name,
		Credits:     coerceCredits(entry["credits"]),
		Description: description,
	}
}

// coerceString turns scalar JSON values into text. Zero, false, null and
// structured values have no text.
func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		f, err := t.Float64()
		if err != nil || f == 0 {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	case bool:
		if t {
			return "true", true
		}
	}
	return "", false
}

// coerceCredits yields a non-negative whole number, 0 for anything that is
// not numeric.
func coerceCredits(v any) int {
	var f float64

	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if t {
			f = 1
		}
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
