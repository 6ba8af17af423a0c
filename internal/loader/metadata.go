package loader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"git.home.luguber.info/inful/corpora/internal/slug"
	"git.home.luguber.info/inful/corpora/internal/util/sets"
)

// header is the decoded fixed-grammar front matter.
type header struct {
	Title       string
	Date        time.Time
	Keywords    []string
	Description string
	Authors     []string
	Slug        string
	Series      string
	SeriesPart  int
}

// Validate implements validation.Validatable.
func (h *header) Validate() error {
	return validation.ValidateStruct(h,
		validation.Field(&h.Title, validation.Required.Error("title is required")),
		validation.Field(&h.SeriesPart, validation.Min(0)),
		validation.Field(&h.Series, validation.When(h.SeriesPart > 0, validation.Required.Error("series_part requires series"))),
	)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// parseDate accepts RFC 3339 with offset; forms without an offset are read as UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}

// decodeHeader maps raw YAML fields onto the fixed grammar. Unknown fields are ignored.
func decodeHeader(fields map[string]any) (*header, error) {
	h := &header{}
	var err error

	if h.Title, err = scalar(fields, "title"); err != nil {
		return nil, err
	}
	h.Title = strings.TrimSpace(h.Title)
	if h.Description, err = scalar(fields, "description"); err != nil {
		return nil, err
	}
	if h.Series, err = scalar(fields, "series"); err != nil {
		return nil, err
	}
	h.Series = slug.Make(h.Series)

	raw, err := scalar(fields, "slug")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) != "" {
		h.Slug = slug.Clean(raw)
		if h.Slug == "" {
			return nil, fmt.Errorf("%w: slug %q has no usable characters", ErrBadField, raw)
		}
	}

	if key, v := firstPresent(fields, "date", "revdate"); v != nil {
		switch tv := v.(type) {
		case time.Time:
			h.Date = tv.UTC()
		case string:
			if h.Date, err = parseDate(tv); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: %s must be a date string", ErrBadField, key)
		}
	}

	tags := sets.New[string]()
	for _, key := range []string{"keywords", "tags"} {
		list, lerr := stringList(fields, key)
		if lerr != nil {
			return nil, lerr
		}
		for _, t := range list {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				tags.Add(t)
			}
		}
	}
	h.Keywords = sets.Sorted(tags)

	for _, key := range []string{"author", "authors"} {
		list, lerr := stringList(fields, key)
		if lerr != nil {
			return nil, lerr
		}
		for _, a := range list {
			if a = strings.TrimSpace(a); a != "" && !slices.Contains(h.Authors, a) {
				h.Authors = append(h.Authors, a)
			}
		}
	}

	if v, ok := fields["series_part"]; ok && v != nil {
		switch pv := v.(type) {
		case int:
			h.SeriesPart = pv
		case string:
			if h.SeriesPart, err = strconv.Atoi(strings.TrimSpace(pv)); err != nil {
				return nil, fmt.Errorf("%w: series_part must be an integer", ErrBadField)
			}
		default:
			return nil, fmt.Errorf("%w: series_part must be an integer", ErrBadField)
		}
	}
	return h, nil
}

func firstPresent(fields map[string]any, keys ...string) (string, any) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return k, v
		}
	}
	return "", nil
}

func scalar(fields map[string]any, key string) (string, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", nil
	}
	switch tv := v.(type) {
	case string:
		return tv, nil
	case int, int64, float64, bool:
		return fmt.Sprint(tv), nil
	default:
		return "", fmt.Errorf("%w: %s must be a scalar", ErrBadField, key)
	}
}

// stringList accepts a comma-separated string or a YAML sequence of scalars.
func stringList(fields map[string]any, key string) ([]string, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch tv := v.(type) {
	case string:
		return strings.Split(tv, ","), nil
	case []any:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			switch iv := item.(type) {
			case string:
				out = append(out, iv)
			case int, int64, float64, bool:
				out = append(out, fmt.Sprint(iv))
			default:
				return nil, fmt.Errorf("%w: %s entries must be scalars", ErrBadField, key)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a string or list", ErrBadField, key)
	}
}
