package domain

// Booking types.
const (
	BookingTypeStandard = "standard"
	BookingTypeTrial    = "trial"
	BookingTypeReserve  = "reserve"
	BookingTypePayLater = "payLater"
	BookingTypeManual   = "manual"
)

// Hold statuses; only meaningful for payLater bookings.
const (
	HoldStatusNone     = "none"
	HoldStatusActive   = "active"
	HoldStatusReleased = "released"
	HoldStatusCaptured = "captured"
)

// CRM pipeline stages.
const (
	CRMStageNew       = "new"
	CRMStageContacted = "contacted"
	CRMStageConfirmed = "confirmed"
	CRMStageCheckedIn = "checked_in"
	CRMStageCancelled = "cancelled"
)

// Call statuses used by the front desk on bookings and declined-payment leads.
const (
	CallStatusNotCalled = "not_called"
	CallStatusCalled    = "called"
	CallStatusNoAnswer  = "no_answer"
)

// Booking sources.
const (
	SourceWeb     = "web"
	SourceWebhook = "webhook"
	SourceCRM     = "crm"
	SourceZapier  = "zapier"
)

// PMS kinds.
const (
	PMSCloudbeds     = "cloudbeds"
	PMSBookingCenter = "bookingcenter"
)

var BookingTypes = map[string]bool{
	BookingTypeStandard: true,
	BookingTypeTrial:    true,
	BookingTypeReserve:  true,
	BookingTypePayLater: true,
	BookingTypeManual:   true,
}

var CRMStages = map[string]bool{
	CRMStageNew:       true,
	CRMStageContacted: true,
	CRMStageConfirmed: true,
	CRMStageCheckedIn: true,
	CRMStageCancelled: true,
}

var CallStatuses = map[string]bool{
	CallStatusNotCalled: true,
	CallStatusCalled:    true,
	CallStatusNoAnswer:  true,
}
