package models

// Stats is an aggregate snapshot for the admin dashboard and /stats.
type Stats struct {
	Users            int64 `json:"users"`
	PendingRequests  int64 `json:"pending_requests"`
	ApprovedRequests int64 `json:"approved_requests"`
	RejectedRequests int64 `json:"rejected_requests"`
	OpenComplaints   int64 `json:"open_complaints"`
	ClosedComplaints int64 `json:"closed_complaints"`
}
