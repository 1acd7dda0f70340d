// Package report produces the text content of the executive, technical and
// compliance reports from a normalized assessment.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/cuongbtq/assessment-reports/internal/assessment"
	"github.com/cuongbtq/assessment-reports/internal/generation"
)

// Kind identifies one report variant.
type Kind string

const (
	KindExecutive  Kind = "executive"
	KindTechnical  Kind = "technical"
	KindCompliance Kind = "compliance"
)

// Kinds is the fixed set of report kinds produced for every job, in the
// order they are listed to clients.
var Kinds = []Kind{KindExecutive, KindTechnical, KindCompliance}

// Title is printed on the title page.
func (k Kind) Title() string {
	switch k {
	case KindExecutive:
		return "Executive Assessment Report"
	case KindTechnical:
		return "Technical Deep-Dive Report"
	case KindCompliance:
		return "Compliance & Security Assessment"
	default:
		return string(k)
	}
}

// Label is the short report type used in page footers.
func (k Kind) Label() string {
	switch k {
	case KindExecutive:
		return "Executive Assessment"
	case KindTechnical:
		return "Technical Deep-Dive"
	case KindCompliance:
		return "Compliance Assessment"
	default:
		return string(k)
	}
}

// Source tells whether content came from the model or the local templates.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

var (
	// ErrGenerationUnavailable means the generation service could not be
	// reached or is not configured. Producers recover with fallback content.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
	// ErrMalformedResponse means the model answered with text that is not the
	// expected record of strings. Producers recover with fallback content.
	ErrMalformedResponse = errors.New("malformed generation response")
	// ErrNotApplicable is returned by a producer that declines the assessment.
	// It is an outcome, not a failure.
	ErrNotApplicable = errors.New("report not applicable")
)

// Fact is one labelled row of the title page table.
type Fact struct {
	Label string
	Value string
}

// Section is one titled block of report text. Body paragraphs are separated
// by blank lines.
type Section struct {
	Key   string
	Title string
	Body  string
}

// Document is everything the renderer needs for one report.
type Document struct {
	Kind           Kind
	Title          string
	ReportType     string
	CompanyName    string
	Industry       string
	AssessmentDate string
	Facts          []Fact
	Sections       []Section
}

// Output is the result of one successful Produce call.
type Output struct {
	Kind     Kind
	Document *Document
	// Details is persisted on the job as this kind's metadata.
	Details map[string]any
	Source  Source
	// Cause is the error that forced fallback content, if any.
	Cause             error
	GenerationLatency time.Duration
}

// Generator is the text generation capability used by producers.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (string, error)
}

// Producer turns an assessment into the content of one report kind.
type Producer interface {
	Kind() Kind
	Produce(ctx context.Context, a *assessment.Assessment) (*Output, error)
}
