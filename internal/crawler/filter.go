package crawler

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var (
	// absoluteLink matches the links kept from a page: absolute http(s) URLs
	absoluteLink = regexp.MustCompile(`(?i)^https?://`)

	// urlMain captures the host of an absolute URL without scheme or www prefix
	urlMain = regexp.MustCompile(`(?i)^https?://(?:www\d?\.)?([^/?#]*)`)
)

// ExtractDomain extracts the hostname (domain/subdomain) from a URL string
func ExtractDomain(urlStr string) (string, error) {
	// Handle protocol-relative URLs
	if strings.HasPrefix(urlStr, "//") {
		urlStr = "https:" + urlStr
	}

	// Handle relative URLs (no scheme)
	if !strings.Contains(urlStr, "://") {
		return "", nil
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	return strings.ToLower(parsed.Hostname()), nil
}

// URLMain returns the host part of an absolute link with any scheme and
// leading www label removed, or "" when link is not absolute
// Example: https://www.blog.example.com/post?id=1 -> blog.example.com
func URLMain(link string) string {
	m := urlMain.FindStringSubmatch(strings.TrimSpace(link))
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// MatchRegisteredDomain strips leading labels from host until it names a
// known domain. Returns "" when no suffix of host is known.
// Example: shop.example.com with example.com known -> example.com
func MatchRegisteredDomain(host string, known map[string]struct{}) string {
	for strings.Contains(host, ".") {
		if _, ok := known[host]; ok {
			return host
		}
		host = host[strings.Index(host, ".")+1:]
	}
	return ""
}

// FilterLinks keeps the absolute links of a page that do not mention its own domain
func FilterLinks(domain string, hrefs []string) []string {
	links := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if !absoluteLink.MatchString(href) || strings.Contains(href, domain) {
			continue
		}
		links = append(links, href)
	}
	return links
}

// DeriveLinks returns the distinct main domains of links and the distinct
// known domains they resolve to, both sorted
func DeriveLinks(links []string, known map[string]struct{}) (mainDomains, registered []string) {
	mainSet := make(map[string]struct{})
	for _, link := range links {
		if host := URLMain(link); host != "" {
			mainSet[host] = struct{}{}
		}
	}

	registeredSet := make(map[string]struct{})
	for host := range mainSet {
		mainDomains = append(mainDomains, host)
		if match := MatchRegisteredDomain(host, known); match != "" {
			registeredSet[match] = struct{}{}
		}
	}
	for match := range registeredSet {
		registered = append(registered, match)
	}

	sort.Strings(mainDomains)
	sort.Strings(registered)
	return mainDomains, registered
}
