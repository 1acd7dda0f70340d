// Package observability provides the OpenTelemetry metrics of both services.
package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod  = "method"
	attrRoute   = "route"
	attrStatus  = "status"
	attrKind    = "kind"
	attrOutcome = "outcome"
	attrSource  = "source"
	attrJob     = "job_status"
)

// Report outcomes recorded per kind.
const (
	OutcomeUploaded      = "uploaded"
	OutcomeFailed        = "failed"
	OutcomeNotApplicable = "not_applicable"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func routeAttr(route string) attribute.KeyValue {
	// Unmatched paths share one series to bound cardinality.
	if route == "" {
		route = "unmatched"
	}
	return attribute.String(attrRoute, route)
}

func statusAttr(code int) attribute.KeyValue {
	return attribute.String(attrStatus, statusClass(code))
}

// statusClass groups codes as 2xx, 4xx, 5xx.
func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

func kindAttr(kind string) attribute.KeyValue {
	return attribute.String(attrKind, kind)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

func sourceAttr(source string) attribute.KeyValue {
	return attribute.String(attrSource, source)
}

func jobStatusAttr(status string) attribute.KeyValue {
	return attribute.String(attrJob, status)
}
