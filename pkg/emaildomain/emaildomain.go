// Package emaildomain classifies email addresses as corporate or consumer
// webmail and derives company display names from domains.
package emaildomain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minFirstNameLength = 2
	maxFirstNameLength = 50
)

// publicProviders lists consumer webmail and disposable-address providers
// that never identify an employer.
var publicProviders = []string{
	"gmail.com", "googlemail.com", "yahoo.com", "yahoo.co.uk", "yahoo.co.in", "yahoo.fr",
	"yahoo.de", "ymail.com", "rocketmail.com", "outlook.com", "outlook.fr", "hotmail.com",
	"hotmail.co.uk", "hotmail.fr", "live.com", "live.co.uk", "msn.com", "icloud.com", "me.com",
	"mac.com", "aol.com", "protonmail.com", "protonmail.ch", "proton.me", "pm.me", "gmx.com",
	"gmx.net", "gmx.de", "web.de", "mail.com", "mail.ru", "yandex.com", "yandex.ru", "zoho.com",
	"zohomail.com", "rediffmail.com", "qq.com", "163.com", "126.com", "naver.com", "daum.net",
	"fastmail.com", "fastmail.fm", "tutanota.com", "tuta.io", "hey.com", "inbox.com",
	"hushmail.com", "mailinator.com", "guerrillamail.com", "10minutemail.com", "temp-mail.org",
	"yopmail.com", "laposte.net", "orange.fr", "free.fr", "t-online.de", "libero.it",
	"btinternet.com", "comcast.net", "verizon.net", "att.net", "sbcglobal.net", "cox.net",
	"bigpond.com", "seznam.cz", "wp.pl", "interia.pl", "rambler.ru", "bk.ru", "list.ru",
	"inbox.ru", "sina.com", "aim.com", "duck.com", "skiff.com", "startmail.com", "posteo.de",
	"mailbox.org", "runbox.com", "gmx.us", "email.com", "usa.com", "myself.com", "consultant.com",
	"outlook.co.uk", "hotmail.de", "hotmail.it", "hotmail.es", "live.fr", "windowslive.com",
	"protonmail.me", "yahoo.es", "yahoo.it", "yahoo.com.br", "uol.com.br", "bol.com.br",
	"terra.com.br", "hanmail.net", "nate.com", "rediff.com", "sify.com", "sharklasers.com",
	"trashmail.com", "dispostable.com", "maildrop.cc", "getnada.com", "emailondeck.com",
	"throwawaymail.com", "mailnesia.com", "spamgourmet.com", "mytrashmail.com", "fakeinbox.com",
	"tempmail.com", "tempr.email", "discard.email", "mintemail.com", "burnermail.io",
	"anonaddy.me", "simplelogin.com", "relay.firefox.com", "privaterelay.appleid.com",
}

var publicDomains = func() map[string]struct{} {
	set := make(map[string]struct{}, len(publicProviders))
	for _, domain := range publicProviders {
		set[domain] = struct{}{}
	}
	return set
}()

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExtractDomain returns the lower-cased text after the last '@', or "" when
// the address has none.
func ExtractDomain(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// IsPublicDomain reports whether domain belongs to a consumer webmail provider.
func IsPublicDomain(domain string) bool {
	_, ok := publicDomains[strings.ToLower(strings.TrimSpace(domain))]
	return ok
}

// IsCorporateEmail reports whether the address belongs to an employer domain.
// Addresses without '@' or with an empty domain are not corporate.
func IsCorporateEmail(email string) bool {
	domain := ExtractDomain(email)
	if domain == "" {
		return false
	}
	return !IsPublicDomain(domain)
}

// DeriveCompanyName turns a domain into a display name: the TLD is dropped,
// the rest is split on '-', '_' and '.', and each segment is title-cased.
//
//	big-corp.com      -> "Big Corp"
//	research.acme.io  -> "Research Acme"
func DeriveCompanyName(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ""
	}
	if dot := strings.LastIndex(domain, "."); dot > 0 {
		domain = domain[:dot]
	}

	segments := strings.FieldsFunc(domain, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	for i, segment := range segments {
		segments[i] = titleCase(segment)
	}
	return strings.Join(segments, " ")
}

// ValidateFirstName reports whether the trimmed name has between 2 and 50 characters.
func ValidateFirstName(name string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	return n >= minFirstNameLength && n <= maxFirstNameLength
}

func titleCase(segment string) string {
	r, size := utf8.DecodeRuneInString(segment)
	if r == utf8.RuneError {
		return segment
	}
	return string(unicode.ToUpper(r)) + segment[size:]
}
