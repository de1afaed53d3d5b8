// Package domain contains core domain types for the research assistant gateway.
package domain

// Identity of callers whose token is missing or rejected by the client-details API.
const (
	DefaultUserID  = "default_user"
	DefaultCompany = "anonymous"
)

// ClientProfile is the company profile resolved from an auth token.
type ClientProfile struct {
	ID              string   `json:"id"`
	Company         string   `json:"company"`
	Country         string   `json:"country"`
	IndustryReports []string `json:"industryReports"`
}

// DefaultProfile returns the anonymous profile, which has no report entitlements.
func DefaultProfile() ClientProfile {
	return ClientProfile{
		ID:              DefaultUserID,
		Company:         DefaultCompany,
		IndustryReports: []string{},
	}
}

// IsDefault reports whether p is the anonymous profile.
func (p ClientProfile) IsDefault() bool {
	return p.ID == DefaultUserID
}
