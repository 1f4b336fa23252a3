package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"golang.org/x/text/language"

	"studio/internal/news"
)

type langContextKey struct{}
type countryContextKey struct{}

var (
	LangKey    = langContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// Edition stores the caller's news edition hints in the request context.
// Only values the news feed accepts are stored, so handlers can use them
// as defaults without further checks.
func Edition(lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if country := ResolveCountry(r, lookup); news.SupportedCountry(country) {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			if lang := detectLang(r); lang != "" {
				ctx = context.WithValue(ctx, LangKey, lang)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// detectLang returns the first supported language from X-Locale or
// Accept-Language, or "".
func detectLang(r *http.Request) string {
	for _, tag := range requestLocales(r) {
		base, _ := tag.Base()
		if lang := base.String(); news.SupportedLang(lang) {
			return lang
		}
	}
	return ""
}

// requestLocales parses X-Locale followed by the Accept-Language entries in
// the order sent. Malformed entries are skipped.
func requestLocales(r *http.Request) []language.Tag {
	var tags []language.Tag
	for _, header := range []string{r.Header.Get("X-Locale"), r.Header.Get("Accept-Language")} {
		for _, part := range strings.Split(header, ",") {
			part, _, _ = strings.Cut(part, ";")
			if part = strings.TrimSpace(part); part == "" || part == "*" {
				continue
			}
			if tag, err := language.Parse(part); err == nil {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// ClientIP returns the first well-formed X-Forwarded-For address, or the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(part)); err == nil {
			return addr.String()
		}
	}
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// LangFromContext returns the stored edition language or "".
func LangFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LangKey).(string); ok {
		return v
	}
	return ""
}

// CountryFromContext returns the stored edition country or "".
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// Country hint headers set by CDNs and proxies, in order of trust.
var countryHeaders = []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}

// ResolveCountry picks an ISO country for r from proxy headers, then an
// explicit locale region, then a GeoIP lookup of the client address.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, h := range countryHeaders {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return strings.ToUpper(v)
		}
	}
	for _, tag := range requestLocales(r) {
		if region, conf := tag.Region(); conf == language.Exact {
			return region.String()
		}
	}
	if lookup == nil {
		return ""
	}
	ip := ClientIP(r)
	if ip == "" {
		return ""
	}
	country, err := lookup(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(country)
}
