package device

// Binding check outcomes.
const (
	BindingBound     = "BOUND"
	BindingAutoBound = "AUTO_BOUND"
	BindingMismatch  = "MISMATCH"
)

// Device is the incoming device identity attached to a scan or login. The
// fingerprint is generated client-side and treated as an opaque token.
type Device struct {
	ID          string `json:"id" form:"id"`
	Type        string `json:"type" form:"type"`
	Fingerprint string `json:"fingerprint" form:"fingerprint"`
}

type FileChangeRequest struct {
	UserID          int    `json:"user_id"`
	RequestedDevice Device `json:"requested_device"`
	Reason          string `json:"reason" form:"reason"`
}

type ResolveRequest struct {
	RequestID   int    `json:"request_id" form:"request_id"`
	Decision    string `json:"decision" form:"decision"`
	AdminReason string `json:"admin_reason" form:"admin_reason"`
}

type Filter struct {
	Limit  *int
	Offset *int
	Status *string
}
