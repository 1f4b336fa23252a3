// Package news reads Google News RSS feeds and keeps recent results in a
// cache that a cron schedule refreshes.
package news

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"studio/internal/domain"
)

const (
	DefaultCategory = "WORLD"
	DefaultLang     = "en"
	DefaultCountry  = "WORLD"
	DefaultLimit    = 10
)

// Categories are the topic sections that can be requested.
var Categories = []string{"WORLD", "NATION", "BUSINESS", "TECHNOLOGY", "ENTERTAINMENT", "SPORTS", "SCIENCE", "HEALTH"}

// Langs and Countries are the accepted edition values.
var (
	Langs     = []string{"en", "hi", "es", "fr", "uk", "ja"}
	Countries = []string{"WORLD", "US", "IN", "GB", "MX", "UA", "JP"}
)

var validate = validator.New()

// Query selects a feed.
type Query = domain.NewsQuery

// Normalize fills defaults and canonical casing. Category is only
// defaulted for headline queries.
func Normalize(q Query) Query {
	q.Category = strings.ToUpper(strings.TrimSpace(q.Category))
	q.Topic = strings.TrimSpace(q.Topic)
	q.Lang = strings.ToLower(strings.TrimSpace(q.Lang))
	q.Country = strings.ToUpper(strings.TrimSpace(q.Country))
	if q.Category == "" && q.Topic == "" {
		q.Category = DefaultCategory
	}
	if q.Lang == "" {
		q.Lang = DefaultLang
	}
	if q.Country == "" {
		q.Country = DefaultCountry
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	return q
}

// Validate checks a normalized query.
func Validate(q Query) error {
	if err := validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, formatFieldError(e))
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidQuery, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
	}
	return nil
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		if e.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// SupportedCountry reports whether code is an accepted edition country.
func SupportedCountry(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range Countries {
		if c == code {
			return true
		}
	}
	return false
}

// SupportedLang reports whether lang is an accepted edition language.
func SupportedLang(lang string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, l := range Langs {
		if l == lang {
			return true
		}
	}
	return false
}

func cacheKey(q Query) string {
	if q.Topic != "" {
		return fmt.Sprintf("news:topic:%s:%s:%s:%d", strings.ToLower(q.Topic), q.Lang, q.Country, q.Limit)
	}
	return fmt.Sprintf("news:headlines:%s:%s:%s:%d", q.Category, q.Lang, q.Country, q.Limit)
}
