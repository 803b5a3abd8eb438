package email

const (
	subjectPortalLinkFmt     = "Your secure link for %s"
	subjectStageChangedFmt   = "Update on %s"
	subjectPaymentReceiptFmt = "Payment received for %s"
)
