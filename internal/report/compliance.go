package report

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/assessment-reports/internal/assessment"
)

var complianceSections = []sectionSpec{
	{"compliance_gap_analysis", "Compliance Gap Analysis"},
	{"data_governance_framework", "Data Governance Framework"},
	{"security_architecture", "Security Architecture"},
	{"regulatory_roadmap", "Regulatory Roadmap"},
}

var regulatedTerms = []string{"healthcare", "financial", "finance", "banking"}

// Regulated reports whether the industry falls under the compliance report.
func Regulated(industry string) bool {
	lower := strings.ToLower(industry)
	for _, term := range regulatedTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Regulations returns the regulation set quoted for an industry.
func Regulations(industry string) string {
	lower := strings.ToLower(industry)
	switch {
	case strings.Contains(lower, "financial") || strings.Contains(lower, "fintech"):
		return "SOX, PCI-DSS, GLBA, and GDPR"
	case strings.Contains(lower, "healthcare"):
		return "HIPAA, HITECH, and GDPR"
	default:
		return "GDPR and ISO 27001"
	}
}

// NewComplianceProducer returns the producer of the regulated industry
// report. Unless force is set, unregulated industries get ErrNotApplicable.
func NewComplianceProducer(gen Generator, settings Settings, force bool, logger *slog.Logger) *ContentProducer {
	p := newContentProducer(KindCompliance, gen, settings, complianceSections, logger)
	p.prompt = compliancePrompt
	p.fallback = complianceFallback
	p.facts = func(a *assessment.Assessment) []Fact {
		return []Fact{
			{"Industry", a.Industry},
			{"Assessment Type", "Compliance & Security"},
			{"Assessment Date", a.AssessmentDate},
			{"Regulations", Regulations(a.Industry)},
		}
	}
	p.details = func(a *assessment.Assessment, timestamp string, source Source) map[string]any {
		return map[string]any{
			"company_name": a.CompanyName,
			"industry":     a.Industry,
			"timestamp":    timestamp,
			"source":       string(source),
		}
	}
	p.applicable = func(a *assessment.Assessment) bool {
		return force || Regulated(a.Industry)
	}
	return p
}

func compliancePrompt(a *assessment.Assessment) string {
	var b strings.Builder
	b.WriteString("You are a senior compliance and security consultant writing an assessment report for a regulated organisation.\n\n")
	writeContext(&b, a)
	writeKeyContract(&b, complianceSections)

	fmt.Fprintf(&b, "Applicable regulations to cover: %s.\n", Regulations(a.Industry))
	if a.SecurityCompliance != "" {
		fmt.Fprintf(&b, "Customer security and compliance notes: %s\n", a.SecurityCompliance)
	}
	b.WriteString("\nSECTION GUIDANCE:\n")
	b.WriteString("- compliance_gap_analysis (1000-1200 words): map each regulation to AWS services such as Artifact, Config, Security Hub, CloudTrail, KMS and Macie, rank gaps Critical/High/Medium/Low, cover data residency.\n")
	b.WriteString("- data_governance_framework (1000-1200 words): four-tier classification, RBAC and ABAC, audit trails, encryption and tokenisation, lifecycle and retention.\n")
	fmt.Fprintf(&b, "- security_architecture (800-1000 words): NIST CSF and ISO 27001 alignment, threat model for %s AI workloads including prompt injection, network controls, incident response, monitoring, encryption in transit and at rest.\n", a.Industry)
	b.WriteString("- regulatory_roadmap (800-1000 words): a 12-month plan in four quarterly phases, certifications, evidence collection, cost estimates.\n\n")

	b.WriteString("Write for legal and compliance officers with specific regulatory citations. Separate paragraphs with a blank line.\n")
	b.WriteString("Return ONLY JSON with the four keys. No markdown.")
	return b.String()
}

func complianceFallback(a *assessment.Assessment) map[string]string {
	regs := Regulations(a.Industry)

	return map[string]string{
		"compliance_gap_analysis": fmt.Sprintf(`COMPLIANCE GAP ANALYSIS

Regulatory Requirements Mapping

%s operates in the %s sector and must satisfy %s. This analysis reviews the current control posture, lists the material gaps and orders remediation by risk.

Priority Gaps

Critical gaps concern encryption key ownership, audit trail completeness and evidence of access reviews. High priority gaps cover data residency for model inputs and documented retention schedules. AWS Config rules, Security Hub standards and CloudTrail Lake close most of them within the first quarter.`,
			a.CompanyName, a.Industry, regs),

		"data_governance_framework": `DATA GOVERNANCE FRAMEWORK

Data is classified as public, internal, confidential or restricted, and each class maps to IAM roles and tag-based policies.

Audit and Privacy

CloudTrail, S3 access logs and VPC flow logs form the audit trail. KMS encrypts data at rest, Macie scans for sensitive content and tokenisation protects identifiers before they reach a model. Lifecycle rules enforce retention and secure deletion.`,

		"security_architecture": `SECURITY ARCHITECTURE

Controls align with NIST CSF and ISO 27001. The threat model covers data exfiltration, model abuse and prompt injection against AI workloads.

Defence in Depth

Private subnets, security groups and WAF restrict traffic. GuardDuty and Security Hub feed EventBridge rules that open incidents automatically. TLS 1.3 protects data in transit and runbooks define containment and recovery steps.`,

		"regulatory_roadmap": fmt.Sprintf(`REGULATORY ROADMAP

Months one to three establish foundation controls. Months four to six add enhanced monitoring. Months seven to nine prepare certification evidence. Months ten to twelve complete audits and move to continuous monitoring.

Certification Targets

SOC 2 Type II and ISO 27001 are pursued alongside %s obligations. Initial compliance investment is estimated at $250K to $500K with $150K to $300K annual running cost.`, regs),
	}
}
