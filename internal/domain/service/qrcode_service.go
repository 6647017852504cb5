package service

// QRCodeService renders a setup link so the welcome mail can embed it as an image.
type QRCodeService interface {
	// SetupLinkPNG returns the link as a base64-encoded PNG QR code.
	SetupLinkPNG(link string) (string, error)
}
