// Package qrcode renders setup links as scannable PNG images.
package qrcode

import (
	"encoding/base64"
	"strings"

	"onboarding/config"
	"onboarding/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
)

const defaultSize = 256

type qrcodeService struct {
	size                 int
	errorCorrectionLevel qrcode.RecoveryLevel
}

// NewQRCodeService creates a QR code service from configuration.
func NewQRCodeService(cfg *config.Config) service.QRCodeService {
	size, level := defaultSize, ""
	if cfg != nil && cfg.QRCode != nil {
		size, level = cfg.QRCode.Size, cfg.QRCode.ErrorCorrectionLevel
	}

	return newQRCodeService(size, level)
}

func newQRCodeService(size int, errorCorrectionLevel string) *qrcodeService {
	if size <= 0 {
		size = defaultSize
	}

	return &qrcodeService{
		size:                 size,
		errorCorrectionLevel: parseRecoveryLevel(errorCorrectionLevel),
	}
}

func parseRecoveryLevel(level string) qrcode.RecoveryLevel {
	switch strings.ToUpper(level) {
	case "L":
		return qrcode.Low
	case "Q":
		return qrcode.High
	case "H":
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

// SetupLinkPNG encodes the setup link as a base64 PNG QR code. Links longer than a
// QR code can carry at the configured recovery level are rejected by the encoder.
func (s *qrcodeService) SetupLinkPNG(link string) (string, error) {
	if link == "" {
		return "", errors.New("setup link is empty")
	}

	png, err := qrcode.Encode(link, s.errorCorrectionLevel, s.size)
	if err != nil {
		return "", errors.Wrap(err, "encode setup QR code")
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
