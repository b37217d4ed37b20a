package qrcode

type IssueRequest struct {
	OrganizationID  int    `json:"organization_id" form:"organization_id"`
	Kind            string `json:"kind" form:"kind"`
	ValiditySeconds *int   `json:"validity_seconds,omitempty" form:"validity_seconds"`
}

type RegenerateRequest struct {
	OrganizationID  int    `json:"organization_id" form:"organization_id"`
	Kind            string `json:"kind" form:"kind"`
	ValiditySeconds *int   `json:"validity_seconds,omitempty" form:"validity_seconds"`
}
