package leads

import (
	"net/mail"
	"strings"
)

const (
	maxLocalPartLength = 64
	maxDomainLength    = 253
)

var (
	gmailDomains  = domainSet("gmail.com", "googlemail.com")
	icloudDomains = domainSet("icloud.com", "me.com")
	yahooDomains  = domainSet("rocketmail.com", "yahoo.ca", "yahoo.co.uk", "yahoo.com", "yahoo.de",
		"yahoo.fr", "yahoo.in", "yahoo.it", "ymail.com")
	yandexDomains  = domainSet("yandex.ru", "yandex.ua", "yandex.kz", "yandex.com", "yandex.by", "ya.ru")
	outlookDomains = domainSet(
		"hotmail.at", "hotmail.be", "hotmail.ca", "hotmail.cl", "hotmail.co.il", "hotmail.co.nz",
		"hotmail.co.th", "hotmail.co.uk", "hotmail.com", "hotmail.com.ar", "hotmail.com.au",
		"hotmail.com.br", "hotmail.com.gr", "hotmail.com.mx", "hotmail.com.pe", "hotmail.com.tr",
		"hotmail.com.vn", "hotmail.cz", "hotmail.de", "hotmail.dk", "hotmail.es", "hotmail.fr",
		"hotmail.hu", "hotmail.id", "hotmail.ie", "hotmail.in", "hotmail.it", "hotmail.jp",
		"hotmail.kr", "hotmail.lv", "hotmail.my", "hotmail.ph", "hotmail.pt", "hotmail.sa",
		"hotmail.sg", "hotmail.sk", "live.be", "live.co.uk", "live.com", "live.com.ar",
		"live.com.mx", "live.de", "live.es", "live.eu", "live.fr", "live.it", "live.nl", "msn.com",
		"outlook.at", "outlook.be", "outlook.cl", "outlook.co.il", "outlook.co.nz", "outlook.co.th",
		"outlook.com", "outlook.com.ar", "outlook.com.au", "outlook.com.br", "outlook.com.gr",
		"outlook.com.pe", "outlook.com.tr", "outlook.com.vn", "outlook.cz", "outlook.de",
		"outlook.dk", "outlook.es", "outlook.fr", "outlook.hu", "outlook.id", "outlook.ie",
		"outlook.in", "outlook.it", "outlook.jp", "outlook.kr", "outlook.lv", "outlook.my",
		"outlook.ph", "outlook.pt", "outlook.sa", "outlook.sg", "outlook.sk", "passport.com",
	)
)

func domainSet(domains ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[d] = struct{}{}
	}
	return set
}

func inSet(set map[string]struct{}, domain string) bool {
	_, ok := set[domain]
	return ok
}

// IsEmail reports whether s is a bare, syntactically valid address with a
// dotted domain and an alphabetic top-level label.
func IsEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	parsed, err := mail.ParseAddress(s)
	if err != nil || parsed.Name != "" || parsed.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	local, domain := s[:at], s[at+1:]
	if len(local) > maxLocalPartLength || len(domain) > maxDomainLength {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !validLabel(label) {
			return false
		}
	}
	tld := labels[len(labels)-1]
	if strings.HasPrefix(strings.ToLower(tld), "xn--") {
		return true
	}
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if !isASCIILetter(r) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, r := range label {
		if !isASCIILetter(r) && !(r >= '0' && r <= '9') && r != '-' {
			return false
		}
	}
	return true
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// NormalizeEmail canonicalizes an address: the whole address is lowercased,
// Gmail drops dots and +tags (googlemail.com becomes gmail.com), iCloud and
// Outlook drop +tags, Yahoo drops the last -tag and Yandex aliases fold into
// yandex.ru. It reports false when nothing is left of the local part.
func NormalizeEmail(s string) (string, bool) {
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return "", false
	}
	user, domain := s[:at], strings.ToLower(s[at+1:])

	switch {
	case inSet(gmailDomains, domain):
		user = strings.SplitN(user, "+", 2)[0]
		user = strings.ReplaceAll(user, ".", "")
		domain = "gmail.com"
	case inSet(icloudDomains, domain), inSet(outlookDomains, domain):
		user = strings.SplitN(user, "+", 2)[0]
	case inSet(yahooDomains, domain):
		if parts := strings.Split(user, "-"); len(parts) > 1 {
			user = strings.Join(parts[:len(parts)-1], "-")
		}
	case inSet(yandexDomains, domain):
		domain = "yandex.ru"
	}
	if user == "" {
		return "", false
	}
	return strings.ToLower(user) + "@" + domain, true
}
