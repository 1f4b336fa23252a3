// Package composer drives the post composer: post type and news selection,
// the schema-built form and the two-stage prompt/image generation.
//
// All state lives in an explicit State value. Methods that talk to the
// backend block and are meant to be called off the UI goroutine; the UI
// renders from Snapshot.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"studio/internal/domain"
	"studio/internal/infra"
)

// Placeholders shown in the news list.
const (
	NewsPlaceholder = "-- Select News --"
	NewsError       = "Error loading news"
	FormError       = "Error loading form fields."
)

// Categories are the news sections offered for browsing.
var Categories = []string{"WORLD", "NATION", "BUSINESS", "TECHNOLOGY", "ENTERTAINMENT", "SPORTS", "SCIENCE", "HEALTH"}

var (
	ErrBusy       = errors.New("a generation is already in progress")
	ErrStale      = errors.New("response discarded: state changed while it was in flight")
	ErrEmptyTopic = errors.New("topic is empty")
	ErrNoCategory = errors.New("no category selected")
	ErrNotReady   = errors.New("form is not ready to submit")
	ErrNoForm     = errors.New("no form loaded")
	ErrBadIndex   = errors.New("news index out of range")
)

// Phase is the form lifecycle.
type Phase int

const (
	PhaseNoSelection Phase = iota
	PhaseSchemaLoading
	PhaseSchemaLoaded
	PhaseSchemaFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSchemaLoading:
		return "loading"
	case PhaseSchemaLoaded:
		return "loaded"
	case PhaseSchemaFailed:
		return "failed"
	default:
		return "no selection"
	}
}

// Notifier receives blocking alerts.
type Notifier interface {
	Alert(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Alert(msg string) { f(msg) }

// State is everything the composer screen renders.
type State struct {
	PostTypes []string
	PostType  string

	Category        string
	Articles        []domain.Article
	Selected        int
	NewsPlaceholder string

	Phase          Phase
	FormPostType   string
	Form           *Form
	FormError      string
	RefreshVisible bool

	Stage  Stage
	Result *Outcome
}

// SelectedTitle returns the selected headline or "".
func (s State) SelectedTitle() string {
	if s.Selected < 0 || s.Selected >= len(s.Articles) {
		return ""
	}
	return s.Articles[s.Selected].Title
}

// CanSubmit reports whether the primary action is enabled.
func (s State) CanSubmit() bool {
	if s.Phase != PhaseSchemaLoaded || s.Form == nil || s.Stage != StageIdle {
		return false
	}
	return !s.Form.HasTrend || s.SelectedTitle() != ""
}

// StatusText describes an in-flight pipeline.
func (s State) StatusText() string {
	switch s.Stage {
	case StagePrompt:
		return "Generating prompt..."
	case StageImage:
		if s.Result != nil && s.Result.Prompt != nil {
			return s.Result.Prompt.GeneratedPrompt + "\nGenerating image..."
		}
		return "Generating image..."
	}
	return ""
}

type Options struct {
	Backend  Backend
	Notifier Notifier
	Logger   infra.Logger
}

// Composer owns State and serializes updates to it.
type Composer struct {
	backend  Backend
	pipeline *Pipeline
	notifier Notifier
	logger   infra.Logger

	mu        sync.Mutex
	state     State
	formToken uint64
	newsToken uint64
}

func New(opts Options) *Composer {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}
	return &Composer{
		backend:  opts.Backend,
		pipeline: NewPipeline(opts.Backend),
		notifier: notifier,
		logger:   opts.Logger,
		state:    State{Selected: -1, NewsPlaceholder: NewsPlaceholder},
	}
}

// Snapshot returns a copy of the current state.
func (c *Composer) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.PostTypes = append([]string(nil), c.state.PostTypes...)
	s.Articles = append([]domain.Article(nil), c.state.Articles...)
	s.Form = c.state.Form.clone()
	if c.state.Result != nil {
		r := *c.state.Result
		s.Result = &r
	}
	return s
}

// LoadPostTypes fills the post type list.
func (c *Composer) LoadPostTypes(ctx context.Context) error {
	types, err := c.backend.PostTypes(ctx)
	c.mu.Lock()
	if err != nil {
		c.state.PostTypes = nil
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("load post types")
		c.notifier.Alert("Failed to load post types. Please try again later.")
		return err
	}
	c.state.PostTypes = types
	c.mu.Unlock()
	return nil
}

// LoadNewsByCategory replaces the news list with a category feed. An empty
// category only resets the list.
func (c *Composer) LoadNewsByCategory(ctx context.Context, category string) error {
	category = strings.TrimSpace(category)
	c.mu.Lock()
	c.state.Category = category
	if category == "" {
		c.newsToken++
		c.resetNewsLocked(NewsPlaceholder)
		c.mu.Unlock()
		return nil
	}
	token := c.beginNewsLocked()
	c.mu.Unlock()

	resp, err := c.backend.TrendsByCategory(ctx, category)
	return c.finishNews(token, resp, err, "Failed to load news. Please check the category and try again.")
}

// LoadNewsByTopic replaces the news list with search results for topic.
func (c *Composer) LoadNewsByTopic(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		c.mu.Lock()
		c.newsToken++
		c.resetNewsLocked(NewsPlaceholder)
		c.mu.Unlock()
		c.notifier.Alert("Please enter a topic to search.")
		return ErrEmptyTopic
	}
	c.mu.Lock()
	token := c.beginNewsLocked()
	c.mu.Unlock()

	resp, err := c.backend.TrendsByTopic(ctx, topic)
	return c.finishNews(token, resp, err, "Failed to load news for the topic. Please try a different topic.")
}

// RefreshTrends asks the backend to refetch the selected category, then reloads it.
func (c *Composer) RefreshTrends(ctx context.Context) error {
	c.mu.Lock()
	category := c.state.Category
	c.mu.Unlock()
	if category == "" {
		c.notifier.Alert("Please select a category first.")
		return ErrNoCategory
	}
	if err := c.backend.RefreshTrends(ctx, category); err != nil {
		c.logger.Error().Err(err).Str("category", category).Msg("refresh trends")
		c.notifier.Alert("Failed to update trends. Please try again.")
		return err
	}
	return c.LoadNewsByCategory(ctx, category)
}

func (c *Composer) beginNewsLocked() uint64 {
	c.newsToken++
	return c.newsToken
}

func (c *Composer) resetNewsLocked(placeholder string) {
	c.state.Articles = nil
	c.state.Selected = -1
	c.state.NewsPlaceholder = placeholder
	c.syncTrendLocked()
}

func (c *Composer) finishNews(token uint64, resp *domain.NewsResponse, err error, alert string) error {
	c.mu.Lock()
	if token != c.newsToken {
		c.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		c.resetNewsLocked(NewsError)
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("load news")
		c.notifier.Alert(alert)
		return err
	}
	c.state.Articles = resp.Articles
	c.state.Selected = -1
	c.state.NewsPlaceholder = NewsPlaceholder
	c.syncTrendLocked()
	c.mu.Unlock()
	return nil
}

// SelectNews selects the article at index; -1 clears the selection.
func (c *Composer) SelectNews(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < -1 || index >= len(c.state.Articles) {
		return fmt.Errorf("%w: %d", ErrBadIndex, index)
	}
	c.state.Selected = index
	c.syncTrendLocked()
	return nil
}

func (c *Composer) syncTrendLocked() {
	if c.state.Form != nil {
		c.state.Form.SyncTrend(c.state.SelectedTitle())
	}
}

// SelectPostType loads the form schema for postType. Reselecting the post
// type the current form was built for does nothing.
func (c *Composer) SelectPostType(ctx context.Context, postType string) error {
	postType = strings.TrimSpace(postType)
	c.mu.Lock()
	c.state.PostType = postType
	if postType == "" {
		c.formToken++
		c.state.Phase = PhaseNoSelection
		c.state.FormPostType = ""
		c.state.Form = nil
		c.state.FormError = ""
		c.state.RefreshVisible = false
		c.mu.Unlock()
		return nil
	}
	if postType == c.state.FormPostType {
		c.mu.Unlock()
		return nil
	}
	c.formToken++
	token := c.formToken
	c.state.FormPostType = postType
	c.state.Phase = PhaseSchemaLoading
	c.state.Form = nil
	c.state.FormError = ""
	c.state.RefreshVisible = true
	c.mu.Unlock()

	schema, err := c.backend.FormSchema(ctx, postType)

	c.mu.Lock()
	if token != c.formToken {
		c.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		c.state.Phase = PhaseSchemaFailed
		c.state.FormError = FormError
		// a failed schema may be retried by selecting the same type again
		c.state.FormPostType = ""
		c.mu.Unlock()
		c.logger.Error().Err(err).Str("post_type", postType).Msg("load form schema")
		c.notifier.Alert("Failed to load form fields. Please select a valid post type.")
		return err
	}
	c.state.Form = BuildForm(postType, *schema)
	c.state.Phase = PhaseSchemaLoaded
	c.syncTrendLocked()
	c.mu.Unlock()
	return nil
}

// SetField sets a free-text field value.
func (c *Composer) SetField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Form == nil {
		return ErrNoForm
	}
	return c.state.Form.SetValue(name, value)
}

// Generate runs the two-stage pipeline for the current form. A second call
// while one is running returns ErrBusy. If the form is rebuilt while the
// pipeline runs, the outcome is returned with ErrStale and not applied.
func (c *Composer) Generate(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.state.Stage != StageIdle {
		c.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	c.syncTrendLocked()
	if !c.state.CanSubmit() {
		c.mu.Unlock()
		return Outcome{}, ErrNotReady
	}
	payload := c.state.Form.Payload()
	token := c.formToken
	c.state.Stage = StagePrompt
	c.state.Result = nil
	c.mu.Unlock()

	c.logger.Info().Str("post_type", payload["post_type"]).Int("fields", len(payload)-1).Msg("generate")
	out := c.pipeline.Run(ctx, payload, func(stage Stage) {
		c.mu.Lock()
		c.state.Stage = stage
		c.mu.Unlock()
	})
	if out.Prompt != nil && out.Err == nil {
		c.logger.Debug().Int("image_bytes", len(out.Image.Data)).Msg("generate done")
	}

	c.mu.Lock()
	c.state.Stage = StageIdle
	if token != c.formToken {
		c.mu.Unlock()
		return out, ErrStale
	}
	c.state.Result = &out
	c.mu.Unlock()

	if out.Err != nil {
		c.logger.Error().Err(out.Err).Str("stage", out.FailedStage.String()).Msg("generate failed")
		c.notifier.Alert("Failed to process request. Error: " + out.Err.Error())
	}
	return out, nil
}
