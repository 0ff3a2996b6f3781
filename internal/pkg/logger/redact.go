package logger

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// redactEmails masks the local part of any email address in v, keeping
// the first character and the domain so log lines stay correlatable.
func redactEmails(v string) string {
	return emailPattern.ReplaceAllStringFunc(v, func(addr string) string {
		at := strings.Index(addr, "@")
		if at < 1 {
			return "***"
		}
		return addr[:1] + "***" + addr[at:]
	})
}
