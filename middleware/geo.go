package middleware

import (
	"context"
	"net/http"
	"strings"
)

const GeoContextKey contextKey = "geo"

// Geo is a best-effort location derived from edge proxy headers.
type Geo struct {
	Country string
	City    string
}

var (
	countryHeaders = []string{"X-Vercel-IP-Country", "CF-IPCountry", "X-Country-Code"}
	cityHeaders    = []string{"X-Vercel-IP-City", "X-City"}
)

func GeoLocation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		geo := Geo{
			Country: strings.ToUpper(firstHeader(r, countryHeaders)),
			City:    firstHeader(r, cityHeaders),
		}
		// Cloudflare sends XX for unknown and T1 for Tor.
		if geo.Country == "XX" || geo.Country == "T1" {
			geo.Country = ""
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), GeoContextKey, geo)))
	})
}

func GetGeo(r *http.Request) Geo {
	geo, _ := r.Context().Value(GeoContextKey).(Geo)
	return geo
}

func firstHeader(r *http.Request, names []string) string {
	for _, name := range names {
		if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
			return v
		}
	}
	return ""
}
