// Package prompt turns a post instruction into a positive/negative prompt
// pair for the image workflow.
package prompt

import (
	"context"
	"strings"
)

// Pair is a generated prompt pair.
type Pair struct {
	Positive string `json:"positive"`
	Negative string `json:"negative"`
	Provider string `json:"-"`
}

// Text is the human readable form returned to the composer.
func (p Pair) Text() string {
	return "Positive:\n" + p.Positive + "\n\nNegative:\n" + p.Negative
}

type Generator interface {
	Generate(ctx context.Context, instruction string) (Pair, error)
}

// MockedPair is served when no provider answers.
var MockedPair = Pair{
	Positive: "Dynamic social media post, bold colors, modern typography, engaging composition",
	Negative: "Blurry text, low contrast, cluttered design, outdated style",
	Provider: staticProviderName,
}

type StaticGenerator struct{}

func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{}
}

// Generate prefixes the mocked positive prompt with the instruction's first
// sentence so different post types still read differently.
func (s *StaticGenerator) Generate(ctx context.Context, instruction string) (Pair, error) {
	pair := MockedPair
	lead, _, _ := strings.Cut(strings.TrimSpace(instruction), ".")
	if lead = strings.TrimSpace(lead); lead != "" {
		pair.Positive = lead + ", " + pair.Positive
	}
	return pair, nil
}

var _ Generator = (*StaticGenerator)(nil)
