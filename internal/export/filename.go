package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// domainPattern extracts the domain segments from a property, which is
// either a URL prefix (https://www.example.com/) or a domain property
// (sc-domain:example.com).
var domainPattern = regexp.MustCompile(`(?:https?://(?:www\.)?|sc-domain:)([\w\-\.]+)\.([\w\-]+)`)

var unsafeChars = regexp.MustCompile(`[^\w\-]+`)

// Filename builds the download name top_query_report_{domain}_{unix}.{ext}.
// Properties that do not match the domain pattern fall back to a
// sanitized form.
func Filename(property string, format Format, ts time.Time) string {
	domain := extractDomain(property)
	if domain == "" {
		domain = strings.Trim(unsafeChars.ReplaceAllString(property, "_"), "_")
	}
	return fmt.Sprintf("top_query_report_%s_%d.%s", domain, ts.Unix(), format.Ext())
}

func extractDomain(property string) string {
	m := domainPattern.FindStringSubmatch(property)
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(m[1]+m[2], ".", "_")
}
