// Package assessment turns raw survey submissions into the canonical record
// consumed by report producers and title pages.
package assessment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Placeholders used when the submission does not carry a value.
const (
	DefaultCompanyName    = "Valued Customer"
	DefaultIndustry       = "Technology"
	DefaultCompanySize    = "Enterprise"
	DefaultDuration       = "2 weeks"
	DefaultAssessmentType = "Exploratory"
)

// ErrInvalidAssessment is returned when the submission cannot be normalized.
var ErrInvalidAssessment = errors.New("invalid assessment")

// Assessment is the canonical record. It is read-only once built and is
// shared by the concurrent report pipelines.
type Assessment struct {
	CompanyName        string         `json:"company_name"`
	Industry           string         `json:"industry"`
	CompanySize        string         `json:"company_size"`
	AssessmentDuration string         `json:"assessment_duration"`
	AssessmentDate     string         `json:"assessment_date"`
	BusinessProblem    string         `json:"business_problem"`
	BudgetRange        string         `json:"budget_range"`
	PrimaryGoal        string         `json:"primary_goal"`
	StrategicAlignment string         `json:"strategic_alignment"`
	Urgency            string         `json:"urgency"`
	AssessmentType     string         `json:"assessment_type"`
	TechStack          string         `json:"tech_stack"`
	Constraints        string         `json:"constraints"`
	NonFunctional      string         `json:"non_functional"`
	IntegrationTargets string         `json:"integration_targets"`
	SecurityCompliance string         `json:"security_compliance"`
	Responses          map[string]any `json:"responses"`
}

// Normalizer builds Assessments. The clock is injectable for tests.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer returns a Normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize never fails on missing fields; only a non-object responses
// value is rejected.
func (n *Normalizer) Normalize(raw map[string]any) (*Assessment, error) {
	responses := map[string]any{}
	if value, ok := raw["responses"]; ok && value != nil {
		typed, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: responses must be an object, got %T", ErrInvalidAssessment, value)
		}
		responses = typed
	}

	answer := func(key string) string { return stringify(responses[key]) }

	a := &Assessment{
		CompanyName:        CompanyName(responses),
		Industry:           InferIndustry(answer("business-problems")),
		CompanySize:        MapCompanySize(answer("scope-impact")),
		AssessmentDuration: MapTimeline(answer("development-timeline")),
		AssessmentDate:     n.assessmentDate(raw),
		BusinessProblem:    answer("business-problems"),
		BudgetRange:        answer("budget-range"),
		PrimaryGoal:        answer("primary-goal"),
		StrategicAlignment: answer("strategic-alignment"),
		Urgency:            answer("urgency"),
		AssessmentType:     answer("current-state"),
		TechStack:          answer("tech-stack"),
		Constraints:        answer("constraints"),
		NonFunctional:      answer("non-functional"),
		IntegrationTargets: answer("integration-targets"),
		SecurityCompliance: answer("security-compliance"),
		Responses:          responses,
	}
	if a.AssessmentType == "" {
		a.AssessmentType = DefaultAssessmentType
	}

	return a, nil
}

func (n *Normalizer) assessmentDate(raw map[string]any) string {
	if exported := stringify(raw["exportDate"]); exported != "" {
		if len(exported) > 10 {
			return exported[:10]
		}
		return exported
	}
	return n.now().UTC().Format("2006-01-02")
}

// CompanyName takes the text before the first comma of the business owner
// answer, falling back to the company-name answer, then the placeholder.
func CompanyName(responses map[string]any) string {
	owner := stringify(responses["business-owner"])
	if idx := strings.Index(owner, ","); idx >= 0 {
		return strings.TrimSpace(owner[:idx])
	}
	if name := stringify(responses["company-name"]); name != "" {
		return name
	}
	return DefaultCompanyName
}

var industryRules = []struct {
	industry string
	keywords []string
}{
	{"Healthcare Technology", []string{"clinical", "physician", "patient", "healthcare", "medical"}},
	{"Financial Technology", []string{"financial", "banking", "fintech", "payment", "trading", "market", "advisory"}},
	{"Manufacturing & Automotive", []string{"vehicle", "manufacturing", "automotive"}},
}

// InferIndustry checks the keyword sets in order; the first match wins.
func InferIndustry(businessProblem string) string {
	problem := strings.ToLower(businessProblem)
	for _, rule := range industryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(problem, keyword) {
				return rule.industry
			}
		}
	}
	return DefaultIndustry
}

// MapCompanySize maps the scope answer onto a size band.
func MapCompanySize(scope string) string {
	switch {
	case strings.Contains(scope, "200+"):
		return "Mid-market (500-2000 employees)"
	case strings.Contains(scope, "1000+"):
		return "Enterprise (100,000+ employees)"
	case strings.Contains(scope, "500+"):
		return "Large Enterprise (2000-5000 employees)"
	default:
		return DefaultCompanySize
	}
}

// MapTimeline maps the development timeline answer onto an assessment length.
func MapTimeline(timeline string) string {
	switch {
	case strings.Contains(timeline, "3-6"):
		return "3 weeks"
	case strings.Contains(timeline, "6-12"):
		return "4 weeks"
	default:
		return DefaultDuration
	}
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(data)
	}
}
