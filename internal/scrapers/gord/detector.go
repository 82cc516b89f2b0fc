package gord

import "bytes"

const (
	marker_invalid_credentials = "The username and password combination you entered was incorrect"
	marker_captcha_mismatch    = "The code you entered did not match the one that was displayed"
)

// Detector recognizes the login page's feedback about the previous attempt.
type Detector interface {
	// InvalidCredentials reports whether the page says the username or password was wrong.
	InvalidCredentials(page []byte) bool
	// CaptchaMismatch reports whether the page says the previous captcha solution was wrong.
	CaptchaMismatch(page []byte) bool
}

// MarkerDetector matches literal substrings of the page body.
type MarkerDetector struct {
	CredentialsMarker string
	CaptchaMarker     string
}

// DefaultDetector matches the site's english error messages.
func DefaultDetector() MarkerDetector {
	return MarkerDetector{
		CredentialsMarker: marker_invalid_credentials,
		CaptchaMarker:     marker_captcha_mismatch,
	}
}

func (d MarkerDetector) InvalidCredentials(page []byte) bool {
	return d.CredentialsMarker != "" && bytes.Contains(page, []byte(d.CredentialsMarker))
}

func (d MarkerDetector) CaptchaMismatch(page []byte) bool {
	return d.CaptchaMarker != "" && bytes.Contains(page, []byte(d.CaptchaMarker))
}
