package handlers

// HandlerBundle groups every endpoint handler for route registration.
type HandlerBundle struct {
	User      *UserHandler
	Vehicle   *VehicleHandler
	Diagnosis *DiagnosisHandler
	Expert    *ExpertHandler
	Lead      *LeadHandler
	Payment   *PaymentHandler
	Messaging *MessagingHandler
	Realtime  *RealtimeHandler
	Content   *ContentHandler
	Admin     *AdminHandler
}
