package email

import (
	"strings"
)

// IsPlausibleAddress reports whether addr could be an email address: after
// trimming, it must contain an "@" with text on both sides of the last one.
//
// Whether the mailbox exists is up to the mail host, which reports
// INVALID_RECIPIENT when it does not.
func IsPlausibleAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	i := strings.LastIndexByte(addr, '@')
	return i > 0 && i < len(addr)-1
}

// Domain returns the part of addr after the last "@", or "" if there isn't one.
func Domain(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		return addr[i+1:]
	}
	return ""
}
