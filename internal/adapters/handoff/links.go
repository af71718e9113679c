package handoff

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Provider is an external navigation app.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderWaze   Provider = "waze"
)

// DefaultGreeting opens the conversation with a recipient.
const DefaultGreeting = "Olá, estou a caminho da sua entrega."

// ParseProvider accepts "google", "waze" or empty (google).
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderWaze:
		return ProviderWaze, nil
	}
	return "", fmt.Errorf("unknown navigation provider %q", s)
}

// NavigationURL builds the deep link that opens turn-by-turn directions to address.
func NavigationURL(p Provider, address string) string {
	q := escape(address)
	switch p {
	case ProviderWaze:
		return "https://waze.com/ul?q=" + q + "&navigate=yes"
	default:
		return "https://www.google.com/maps/dir/?api=1&destination=" + q
	}
}

// Digits strips everything but ASCII digits from a stored phone number.
func Digits(phone string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

// MessageURL returns a WhatsApp chat link with greeting, or "" without a usable number.
func MessageURL(phone, greeting string) string {
	d := Digits(phone)
	if d == "" {
		return ""
	}
	return "https://wa.me/" + d + "?text=" + escape(greeting)
}

// CallURL returns a tel: link, or "" without a usable number.
func CallURL(phone string) string {
	d := Digits(phone)
	if d == "" {
		return ""
	}
	if strings.HasPrefix(strings.TrimSpace(phone), "+") {
		d = "+" + d
	}
	return "tel:" + d
}

// escape encodes s for a query value with spaces as %20, as map and chat apps expect.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Contact groups the recipient links shown on a delivery card.
type Contact struct {
	Message string `json:"whatsapp,omitempty"`
	Call    string `json:"call,omitempty"`
}

func ContactLinks(phone, greeting string) Contact {
	return Contact{Message: MessageURL(phone, greeting), Call: CallURL(phone)}
}
