package models

// Request lifecycle.
const (
	RequestKindDeposit    = "deposit"
	RequestKindWithdrawal = "withdrawal"

	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Complaint lifecycle.
const (
	ComplaintOpen   = "open"
	ComplaintClosed = "closed"
)

// Ad dispatch lifecycle.
const (
	AdPending   = "pending"
	AdSending   = "sending"
	AdDone      = "done"
	AdCancelled = "cancelled"
	AdFailed    = "failed"
)

// Conversation steps held in the session store.
const (
	StepCompany       = "step_company"
	StepPaymentMethod = "step_payment_method"
	StepAmount        = "step_amount"
	StepReference     = "step_reference"
	StepAddress       = "step_address"
	StepConfirm       = "step_confirm"

	StepRegName  = "step_reg_name"
	StepRegPhone = "step_reg_phone"

	StepComplaintText = "step_complaint_text"

	StepBroadcastText    = "step_broadcast_text"
	StepBroadcastConfirm = "step_broadcast_confirm"

	StepCompanyName   = "step_company_name"
	StepMethodLabel   = "step_method_label"
	StepMethodDetails = "step_method_details"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// DefaultStateTTL lifetime of a user conversation state in the store.
	DefaultStateTTL = 24 * 60 * 60 // seconds

	// DefaultBroadcastRate messages per second towards the Telegram API.
	DefaultBroadcastRate = 25

	// DefaultBroadcastBurst allowance above the steady rate.
	DefaultBroadcastBurst = 5

	// RateLimitMessages inbound messages allowed per user per window.
	RateLimitMessages = 20

	// RateLimitWindow inbound flood window in seconds.
	RateLimitWindow = 60

	// BroadcastQueueSize buffered jobs awaiting dispatch.
	BroadcastQueueSize = 64

	// DefaultCustomerCodePrefix used when config leaves it empty.
	DefaultCustomerCodePrefix = "C"
)
