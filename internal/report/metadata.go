package report

// UnknownCompany is used when no company name can be found in result details.
const UnknownCompany = "customer"

// CompanyName extracts the company from one kind's result details. The
// producers store it either at the top level or under "meta", so the direct
// field is tried first, then the nested one.
func CompanyName(details map[string]any) string {
	if name, ok := details["company_name"].(string); ok && name != "" {
		return name
	}
	if meta, ok := details["meta"].(map[string]any); ok {
		if name, ok := meta["company_name"].(string); ok && name != "" {
			return name
		}
	}
	return UnknownCompany
}
