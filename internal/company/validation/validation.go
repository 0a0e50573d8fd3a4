// Package validation checks founder input before anything is written and
// reports every violated field at once, each with a human readable label.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/go-playground/validator/v10"
)

var labels = map[string]string{
	"name":                   "Company name",
	"tagline":                "Tagline",
	"description":            "Description",
	"logo_url":               "Logo URL",
	"pitch_deck_url":         "Pitch deck URL",
	"category":               "Category",
	"stage":                  "Stage",
	"employees":              "Employee count",
	"location":               "Location",
	"links.website":          "Website",
	"links.github":           "GitHub",
	"links.linkedin":         "LinkedIn",
	"links.twitter":          "Twitter",
	"links.youtube":          "YouTube",
	"executives":             "Executives",
	"qna":                    "Investor questions",
	"main_video.url":         "Main video URL",
	"main_video.description": "Main video description",
	"title":                  "Title",
	"url":                    "URL",
	"summary":                "Summary",
	"thumbnail_url":          "Thumbnail URL",
	"reason":                 "Rejection reason",
}

var itemLabels = map[string]string{
	"name":      "name",
	"role":      "role",
	"photo_url": "photo URL",
	"bio":       "bio",
	"education": "education",
	"linkedin":  "LinkedIn",
	"twitter":   "Twitter",
	"question":  "question",
	"answer":    "answer",
}

var itemPath = regexp.MustCompile(`^(executives|qna)\[(\d+)\]\.(\w+)$`)

// Label returns the human label of a field key such as "tagline" or
// "executives[0].role".
func Label(field string) string {
	if l, ok := labels[field]; ok {
		return l
	}
	if m := itemPath.FindStringSubmatch(field); m != nil {
		n, _ := strconv.Atoi(m[2])
		sub := itemLabels[m[3]]
		if sub == "" {
			sub = m[3]
		}
		prefix := "Executive"
		if m[1] == "qna" {
			prefix = "Question"
		}
		return fmt.Sprintf("%s #%d %s", prefix, n+1, sub)
	}
	return field
}

// Validator wraps a configured go-playground validator.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator that names fields by their json keys.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Struct validates s by its tags and returns a *errors.ValidationError
// listing every violation, or nil.
func (v *Validator) Struct(s interface{}) error {
	verr := &e.ValidationError{}
	if err := v.collect(s, verr); err != nil {
		return err
	}
	return verr.OrNil()
}

// Profile validates a submitted profile: the struct rules plus the rules
// spanning several fields (CEO first, catalog questions, no duplicates).
func (v *Validator) Profile(p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("%w: empty profile", e.ErrInvalidInput)
	}
	verr := &e.ValidationError{}
	if err := v.collect(p, verr); err != nil {
		return err
	}

	if len(p.Executives) > 0 && p.Executives[0].Role != models.RoleCEO {
		addOnce(verr, "executives[0].role", "must be CEO")
	}

	seen := make(map[string]bool, len(p.QnA))
	for i, q := range p.QnA {
		field := fmt.Sprintf("qna[%d].question", i)
		if q.Question == "" {
			continue
		}
		if _, ok := models.QuestionCategory(q.Question); !ok {
			addOnce(verr, field, "must be a question from the catalog")
			continue
		}
		if seen[q.Question] {
			addOnce(verr, field, "is selected more than once")
		}
		seen[q.Question] = true
	}

	return verr.OrNil()
}

func (v *Validator) collect(s interface{}, verr *e.ValidationError) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	for _, fe := range fieldErrs {
		addOnce(verr, fieldKey(fe.Namespace()), message(fe))
	}
	return nil
}

func addOnce(verr *e.ValidationError, field, msg string) {
	if !verr.Has(field) {
		verr.Add(field, Label(field), msg)
	}
}

// fieldKey drops the root type name and the "company." prefix of profile
// scalars: "Profile.company.tagline" becomes "tagline".
func fieldKey(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	return strings.TrimPrefix(namespace, "company.")
}

func message(fe validator.FieldError) string {
	countable := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array || fe.Kind() == reflect.Map
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if countable && fe.Param() == "1" {
			return "must have at least one entry"
		}
		if countable {
			return fmt.Sprintf("must have at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if countable {
			return fmt.Sprintf("must have at most %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "http_url", "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
