package screenscraper

import (
	"github.com/artie-scraper/artie/pkg/client"
)

// Classifier maps ScreenScraper HTTP status codes to error kinds. The
// service uses non-standard codes in the 4xx range: 423 and 426 signal
// account-level lockouts, 430 and 431 are quota variants of 429.
func Classifier(status int) client.ErrorKind {
	switch {
	case status == 400:
		return client.KindBadRequest
	case status == 401, status == 403, status == 423, status == 426:
		return client.KindAccessForbidden
	case status == 404:
		return client.KindNotFound
	case status == 429, status == 430, status == 431:
		return client.KindQuotaExceeded
	case status >= 500:
		return client.KindServiceUnavailable
	default:
		return client.KindUnknown
	}
}
