package service

// MetricsRecorder receives onboarding counters. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	MerchantProvisioned()
	ProvisioningFailed(code string)
	SetupCompleted()
	SetupTokenRejected(code string)
	WelcomeDispatched(result string)
	VerificationChanged(from, to string)
	DocumentReviewed(status string)
	BulkOutcome(action, outcome string)
	SetupTokensPurged(n int64)
	WelcomeMailHandled(outcome string)
}
