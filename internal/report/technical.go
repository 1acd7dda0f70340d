package report

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/assessment-reports/internal/assessment"
)

var technicalSections = []sectionSpec{
	{"current_state_assessment", "Current State Assessment"},
	{"target_architecture_design", "Target Architecture Design"},
	{"data_strategy", "Data Strategy"},
	{"model_evaluation_recommendations", "Model Evaluation Recommendations"},
	{"implementation_plan", "Implementation Plan"},
	{"integration_and_operations", "Integration and Operations"},
}

// NewTechnicalProducer returns the producer of the architecture deep-dive.
func NewTechnicalProducer(gen Generator, settings Settings, logger *slog.Logger) *ContentProducer {
	p := newContentProducer(KindTechnical, gen, settings, technicalSections, logger)
	p.prompt = technicalPrompt
	p.fallback = technicalFallback
	p.facts = func(a *assessment.Assessment) []Fact {
		return []Fact{
			{"Industry", a.Industry},
			{"Assessment Type", "Technical Deep-Dive"},
			{"Assessment Date", a.AssessmentDate},
			{"Company Size", a.CompanySize},
			{"Tech Stack", orDefault(a.TechStack, "Not specified")},
		}
	}
	p.details = metaDetails
	return p
}

func technicalPrompt(a *assessment.Assessment) string {
	var b strings.Builder
	b.WriteString("You are a senior Cloud202 solutions architect writing a TECHNICAL IMPLEMENTATION DEEP-DIVE report for engineering leads.\n\n")
	writeContext(&b, a)
	writeKeyContract(&b, technicalSections)

	b.WriteString("LENGTH AND CONTENT:\n")
	b.WriteString("- current_state_assessment (900-1100 words): topology, runtime and deployment model, SLOs, bottlenecks, failure modes, identity and audit posture, constraints.\n")
	b.WriteString("- target_architecture_design (900-1100 words): AWS reference architecture, traffic flow and VPC design, multi-AZ and DR targets, Bedrock and retrieval components, caching, databases, CI/CD with Terraform.\n")
	b.WriteString("- data_strategy (700-900 words): classification and lineage, ingestion and quality, S3 tiers and lifecycle, KMS encryption, access policies, RAG and vector index design.\n")
	b.WriteString("- model_evaluation_recommendations (700-900 words): offline and online evaluation, golden sets, regression gates, guardrails, human review, cost and latency trade-offs.\n")
	b.WriteString("- implementation_plan (900-1100 words): foundations in months 1-2, core build in 3-5, testing in 6-7, deployment in 8, stabilisation in 9-10, with RACI and risks.\n")
	b.WriteString("- integration_and_operations (800-1000 words): API contracts, observability and error budgets, incident and change runbooks, autoscaling, cost controls, DR drills.\n\n")

	if a.IntegrationTargets != "" {
		fmt.Fprintf(&b, "Integration targets named by the customer: %s\n", a.IntegrationTargets)
	}
	if a.NonFunctional != "" {
		fmt.Fprintf(&b, "Non-functional requirements: %s\n", a.NonFunctional)
	}

	b.WriteString("Use dense technical prose with specific AWS services. Separate paragraphs with a blank line.\n")
	b.WriteString("Return STRICT JSON only. No markdown, no code fences.")
	return b.String()
}

func technicalFallback(a *assessment.Assessment) map[string]string {
	return map[string]string{
		"current_state_assessment": fmt.Sprintf(`CURRENT STATE ASSESSMENT

%s runs an estate typical of %s workloads: legacy monoliths, point-to-point integrations and limited automation.

Observed Gaps

Service levels vary between tiers and headroom is thin at peak. Logs, metrics and traces are collected but not correlated, so incident triage is manual. Identity is central but privileges are coarse and secret rotation is uneven.`,
			a.CompanyName, a.Industry),

		"target_architecture_design": `TARGET ARCHITECTURE DESIGN

The target is a multi-AZ VPC with private subnets, an application load balancer in front of ECS on Fargate, Aurora PostgreSQL with read replicas, an S3 data lake partitioned by prefix, ElastiCache for hot paths and Bedrock for generative workloads.

Delivery and Resilience

Terraform pipelines promote changes between environments behind policy checks. WAF and Shield protect the edge, KMS keys are centrally managed and CloudTrail feeds audit. Recovery combines cross-AZ redundancy with scheduled cross-region backups against documented RTO and RPO.`,

		"data_strategy": `DATA STRATEGY

Data arrives through event streams and batch pipelines, with schemas governed in the Glue catalog and Lake Formation.

Classification and Storage

Restricted, confidential, internal and public classes drive role and attribute based access. Objects move from S3 Standard to Infrequent Access and Glacier by lifecycle rule. Everything is encrypted with KMS, sensitive fields are tokenised and retrieval indexes are separated per tenant.`,

		"model_evaluation_recommendations": `MODEL EVALUATION RECOMMENDATIONS

Offline golden sets and online A/B tests run behind guardrails. Hallucination rate, toxicity, latency and cost are tracked as SLIs with agreed objectives.

Controls

High-risk request classes go to human review queues, regression gates run in CI, caching cuts cost and latency, and circuit breakers isolate failing model calls.`,

		"implementation_plan": `IMPLEMENTATION PLAN

Months one and two lay foundations: environments, infrastructure as code, observability and security controls. Months three to five build the APIs, data pipelines and guardrails.

Later Phases

Months six and seven cover load, security and acceptance testing. Month eight deploys blue/green with rollback and a DR test. Months nine and ten stabilise the platform and hand over runbooks.`,

		"integration_and_operations": `INTEGRATION AND OPERATIONS

Integration contracts define authorisation scopes, idempotency and backoff. CloudWatch and X-Ray provide unified dashboards and actionable alerts.

Day-2 Operations

Operations cover patching cadence, incident runbooks, change control, DR drills, backup and restore tests, budget alarms with anomaly detection and continuous capture of compliance evidence.`,
	}
}
