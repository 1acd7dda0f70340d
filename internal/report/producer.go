package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cuongbtq/assessment-reports/internal/assessment"
	"github.com/cuongbtq/assessment-reports/internal/config"
	"github.com/cuongbtq/assessment-reports/internal/generation"
)

// TimestampLayout formats generation timestamps in details and file names.
const TimestampLayout = "20060102_150405"

// Settings are the generation parameters of one producer.
type Settings struct {
	Temperature float64
	MaxTokens   int
	// Timeout bounds a single generation call. Zero means no bound.
	Timeout time.Duration
}

type sectionSpec struct {
	key   string
	title string
}

// ContentProducer implements Producer for one report kind. The kind-specific
// parts (prompt, fallback text, details shape, applicability) are plugged in
// by the New*Producer constructors.
type ContentProducer struct {
	kind     Kind
	gen      Generator
	settings Settings
	sections []sectionSpec
	schema   *jsonschema.Schema
	logger   *slog.Logger
	now      func() time.Time

	prompt     func(a *assessment.Assessment) string
	fallback   func(a *assessment.Assessment) map[string]string
	facts      func(a *assessment.Assessment) []Fact
	details    func(a *assessment.Assessment, timestamp string, source Source) map[string]any
	applicable func(a *assessment.Assessment) bool
}

func newContentProducer(kind Kind, gen Generator, settings Settings, sections []sectionSpec, logger *slog.Logger) *ContentProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentProducer{
		kind:     kind,
		gen:      gen,
		settings: settings,
		sections: sections,
		schema:   compileSectionSchema(kind, sectionKeys(sections)),
		logger:   logger.With(slog.String("kind", string(kind))),
		now:      time.Now,
	}
}

// Kind returns the report kind this producer builds.
func (p *ContentProducer) Kind() Kind {
	return p.kind
}

// Produce builds the report content. Generation and parse failures are
// recovered with fallback content and reported through Output.Cause. The
// only errors returned are ErrNotApplicable and cancellation of ctx.
func (p *ContentProducer) Produce(ctx context.Context, a *assessment.Assessment) (*Output, error) {
	if p.applicable != nil && !p.applicable(a) {
		return nil, fmt.Errorf("%w: industry %q is not regulated", ErrNotApplicable, a.Industry)
	}

	start := time.Now()
	content, err := p.generate(ctx, a)
	latency := time.Since(start)

	source := SourceGenerated
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to produce %s report: %w", p.kind, ctxErr)
		}
		p.logger.Warn("Using fallback content",
			slog.String("company", a.CompanyName),
			slog.Any("error", err),
		)
		content = p.fallback(a)
		source = SourceFallback
	}

	timestamp := p.now().UTC().Format(TimestampLayout)
	return &Output{
		Kind:              p.kind,
		Document:          p.document(a, content),
		Details:           p.details(a, timestamp, source),
		Source:            source,
		Cause:             err,
		GenerationLatency: latency,
	}, nil
}

func (p *ContentProducer) generate(ctx context.Context, a *assessment.Assessment) (map[string]string, error) {
	if p.gen == nil {
		return nil, fmt.Errorf("%w: no generator configured", ErrGenerationUnavailable)
	}

	if p.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.Timeout)
		defer cancel()
	}

	text, err := p.gen.Generate(ctx, generation.Request{
		Prompt:      p.prompt(a),
		MaxTokens:   p.settings.MaxTokens,
		Temperature: p.settings.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	return parseSections(text, p.schema, sectionKeys(p.sections))
}

func (p *ContentProducer) document(a *assessment.Assessment, content map[string]string) *Document {
	sections := make([]Section, 0, len(p.sections))
	for _, s := range p.sections {
		sections = append(sections, Section{Key: s.key, Title: s.title, Body: content[s.key]})
	}

	return &Document{
		Kind:           p.kind,
		Title:          p.kind.Title(),
		ReportType:     p.kind.Label(),
		CompanyName:    a.CompanyName,
		Industry:       a.Industry,
		AssessmentDate: a.AssessmentDate,
		Facts:          p.facts(a),
		Sections:       sections,
	}
}

func sectionKeys(sections []sectionSpec) []string {
	keys := make([]string, len(sections))
	for i, s := range sections {
		keys[i] = s.key
	}
	return keys
}

// metaDetails is the details shape of the executive and technical reports.
func metaDetails(a *assessment.Assessment, timestamp string, source Source) map[string]any {
	return map[string]any{
		"meta": map[string]any{
			"company_name":    a.CompanyName,
			"industry":        a.Industry,
			"assessment_date": a.AssessmentDate,
			"company_size":    a.CompanySize,
		},
		"timestamp": timestamp,
		"source":    string(source),
	}
}

// NewProducers builds the three producers from process configuration. gen
// may be nil, in which case every report uses fallback content.
func NewProducers(gen Generator, gc config.GenerationConfig, rc config.ReportsConfig, logger *slog.Logger) []Producer {
	if gc.Disabled {
		gen = nil
	}
	settings := func(maxTokens int) Settings {
		return Settings{Temperature: gc.Temperature, MaxTokens: maxTokens, Timeout: gc.Timeout}
	}

	return []Producer{
		NewExecutiveProducer(gen, settings(gc.MaxTokens.Executive), logger),
		NewTechnicalProducer(gen, settings(gc.MaxTokens.Technical), logger),
		NewComplianceProducer(gen, settings(gc.MaxTokens.Compliance), rc.ComplianceForced(), logger),
	}
}
