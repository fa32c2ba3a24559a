package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/airis-sh/airis/logger"
	"github.com/pkg/errors"
)

const DEFAULT_PRODUCT_NAME = "Airis-SH"

var (
	ErrHandoffFailed = errors.New("notification handoff failed")

	logg = logger.NewLogger()
)

// Dispatcher hands one outbound notification to whatever delivers it. A nil
// error only means the handoff happened; delivery itself is never confirmed.
type Dispatcher interface {
	CallContact(ctx context.Context, phone string) error
	SendSMS(ctx context.Context, phone, message string) error
	SendEmail(ctx context.Context, email, message string) error
	SendEmailBatch(ctx context.Context, emails []string, message string) error
}

// NormalizePhone strips whitespace and the characters '-', '(' and ')'.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, phone)
}

func EmailSubject(productName string) string {
	if productName == "" {
		productName = DEFAULT_PRODUCT_NAME
	}
	return fmt.Sprintf("🚨 SOS Alert from %s", productName)
}

func CallURI(phone string) string {
	return "tel:" + NormalizePhone(phone)
}

func SMSURI(phone, message string) string {
	return fmt.Sprintf("sms:%s?body=%s", NormalizePhone(phone), encodeComponent(message))
}

// MailtoURI addresses every recipient in a single comma-joined mailto link
func MailtoURI(emails []string, subject, message string) string {
	return fmt.Sprintf("mailto:%s?subject=%s&body=%s",
		strings.Join(emails, ","), encodeComponent(subject), encodeComponent(message))
}

// encodeComponent percent-encodes 's' for use in a URI query, spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
