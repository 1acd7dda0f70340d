package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/assessment-reports/internal/assessment"
)

var executiveSections = []sectionSpec{
	{"executive_summary", "Executive Summary"},
	{"business_case_analysis", "Business Case & Value Proposition"},
	{"technical_implementation_roadmap", "Technical Implementation Roadmap"},
	{"financial_investment_analysis", "Financial Investment Analysis"},
	{"risk_mitigation_strategy", "Risk Mitigation Strategy"},
	{"strategic_recommendations", "Strategic Recommendations"},
}

// ROI is the headline return estimate quoted in the executive report.
type ROI struct {
	Return        string
	AnnualSavings string
	Payback       string
}

// EstimateROI picks the ROI band from the budget answer.
func EstimateROI(budget string) ROI {
	switch {
	case strings.Contains(budget, "$500K") || strings.Contains(budget, "$1M"):
		return ROI{Return: "420% over 3 years", AnnualSavings: "$4.2M", Payback: "14 months"}
	case strings.Contains(budget, "$100K"):
		return ROI{Return: "300% over 3 years", AnnualSavings: "$2.5M", Payback: "18 months"}
	default:
		return ROI{Return: "350% over 3 years", AnnualSavings: "$3.2M", Payback: "16 months"}
	}
}

// NewExecutiveProducer returns the producer of the C-level report.
func NewExecutiveProducer(gen Generator, settings Settings, logger *slog.Logger) *ContentProducer {
	p := newContentProducer(KindExecutive, gen, settings, executiveSections, logger)
	p.prompt = executivePrompt
	p.fallback = executiveFallback
	p.facts = func(a *assessment.Assessment) []Fact {
		return []Fact{
			{"Industry", a.Industry},
			{"Assessment Type", "Executive Strategic"},
			{"Assessment Date", a.AssessmentDate},
			{"Duration", a.AssessmentDuration},
			{"Budget Range", orDefault(a.BudgetRange, "To be determined")},
		}
	}
	p.details = metaDetails
	return p
}

func executivePrompt(a *assessment.Assessment) string {
	roi := EstimateROI(a.BudgetRange)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior Cloud202 solutions architect writing an EXECUTIVE assessment report for a board-level audience.\n\n")
	writeContext(&b, a)
	fmt.Fprintf(&b, "PRIMARY GOAL: %s\nURGENCY: %s\n\n", a.PrimaryGoal, a.Urgency)
	b.WriteString("Write six sections of 800-1200 words each, enough for a 12-15 page PDF.\n\n")
	writeKeyContract(&b, executiveSections)

	b.WriteString("SECTION GUIDANCE:\n")
	fmt.Fprintf(&b, "- executive_summary: context for %s in %s, the problem (%s), the proposed GenAI and cloud approach, expected outcomes. Quote ROI %s, annual savings %s, payback %s.\n",
		a.CompanyName, a.Industry, a.BusinessProblem, roi.Return, roi.AnnualSavings, roi.Payback)
	fmt.Fprintf(&b, "- business_case_analysis: quantified current pain, outcomes tied to %q, a KPI tree for throughput, quality, cost and cycle time, plus a risk/benefit matrix.\n", a.PrimaryGoal)
	b.WriteString("- technical_implementation_roadmap: phases at 0-3, 4-6, 7-9 and 10-12 months covering data, model, integration and platform workstreams, build vs buy, critical path.\n")
	fmt.Fprintf(&b, "- financial_investment_analysis: budget bands derived from %q, opex and capex split, unit economics, sensitivity around %s.\n", a.BudgetRange, roi.Return)
	b.WriteString("- risk_mitigation_strategy: delivery, security, privacy and change risks with controls, contingencies and a governance cadence.\n")
	b.WriteString("- strategic_recommendations: leadership and governance, organisational readiness, partnership with Cloud202, an AI centre of excellence blueprint.\n\n")

	b.WriteString("Use a professional tone, concrete numbers and dates, plain text only inside the JSON values. Separate paragraphs with a blank line.\n")
	b.WriteString("Return ONLY the JSON object. No markdown, no code fences.")
	return b.String()
}

func executiveFallback(a *assessment.Assessment) map[string]string {
	roi := EstimateROI(a.BudgetRange)
	problem := orDefault(a.BusinessProblem, "its current operational challenges")
	budget := orDefault(a.BudgetRange, "$500K - $1M")

	return map[string]string{
		"executive_summary": fmt.Sprintf(`EXECUTIVE SUMMARY

%s, operating in the %s sector, is assessing how generative AI on AWS can address %s.

Outcome Focus

The programme is measured on shorter cycle times, lower cost per transaction and higher output quality, with governance and risk posture improving alongside. Based on the stated budget the expected return is %s, with annual savings of around %s and payback in roughly %s.

An executive steering group meets monthly and value is reviewed every quarter so that investment follows evidence.`,
			a.CompanyName, a.Industry, problem, roi.Return, roi.AnnualSavings, roi.Payback),

		"business_case_analysis": fmt.Sprintf(`BUSINESS CASE & VALUE PROPOSITION

Benefits are tracked across throughput, quality and cost. Within a %s investment envelope, automation of the highest-volume workflows delivers most of the early value.

KPI Tree

Executive measures link to leading indicators such as first-pass yield, backlog age and cycle time per value stream. Unit economics improve as volume grows and rework falls.`, budget),

		"technical_implementation_roadmap": `TECHNICAL IMPLEMENTATION ROADMAP

Delivery runs in four phases: discovery and baselining in the first month, pilot build with data enablement up to month three, scale-out and platform hardening to month six, then enterprise rollout through month twelve.

Workstreams

Data, model lifecycle with evaluation and guardrails, integration and platform operations run in parallel on a secure-by-default landing zone.`,

		"financial_investment_analysis": fmt.Sprintf(`FINANCIAL INVESTMENT ANALYSIS

The budget covers platform subscriptions, cloud consumption, integration work, change management and enablement.

Sensitivity

Utilisation bands and seasonal load drive the sensitivity analysis around the %s headline. Cloud credits and reserved capacity reduce run cost, and foundation spend is amortised across later use cases.`, roi.Return),

		"risk_mitigation_strategy": `RISK MITIGATION STRATEGY

The main risks are delivery slip, data quality, change fatigue and model behaviour.

Controls

Releases are gated, reference environments are kept, models are backtested, policy is expressed as code and a RACI defines escalation thresholds. The governance cadence protects scope and keeps value tracking honest.`,

		"strategic_recommendations": `STRATEGIC RECOMMENDATIONS

Form an executive steering committee and an AI centre of excellence, align incentives to outcome KPIs and adopt a product operating model.

Next Steps

Start with two lighthouse use cases for a fast proof of value, then turn the lessons into standards, templates and training that speed up the wider portfolio.`,
	}
}

// writeContext embeds the assessment as indented JSON.
func writeContext(b *strings.Builder, a *assessment.Assessment) {
	fmt.Fprintf(b, "COMPANY: %s\nINDUSTRY: %s\n", a.CompanyName, a.Industry)
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(b, "ASSESSMENT DATA:\n%s\n\n", data)
}

// writeKeyContract lists the exact JSON keys the model must return.
func writeKeyContract(b *strings.Builder, sections []sectionSpec) {
	b.WriteString("Return ONLY valid JSON with exactly these keys, each holding plain text:\n{\n")
	for i, s := range sections {
		sep := ","
		if i == len(sections)-1 {
			sep = ""
		}
		fmt.Fprintf(b, "  %q: \"...\"%s\n", s.key, sep)
	}
	b.WriteString("}\n\n")
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
