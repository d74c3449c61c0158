package screenscraper

import (
	"strconv"
	"time"

	"github.com/artie-scraper/artie/pkg/client"
)

// OptimalThreads derives a worker count from the server's infrastructure
// document, scaled down from the user's allowed maximum as server load
// rises and clamped to the capacity the server has left. Without usable
// server data the user maximum stands.
func OptimalThreads(infra *client.Document, userMax int) int {
	if userMax < 1 {
		userMax = 1
	}
	ssinfra := infraSection(infra)
	if ssinfra == nil {
		return userMax
	}

	threads := userMax
	if load, ok := numeric(ssinfra["charge"]); ok {
		switch {
		case load > 90:
			threads = max(1, userMax/4)
		case load > 75:
			threads = max(1, userMax/2)
		case load > 50:
			threads = max(1, userMax*3/4)
		}
	}

	// Leave headroom: take at most 80% of the server's free slots.
	if maxThreads, ok := numeric(ssinfra["maxthreads"]); ok && maxThreads > 0 {
		active, _ := numeric(ssinfra["threadsactifs"])
		available := int(maxThreads - active)
		if available < threads {
			threads = max(1, available*8/10)
		}
	}

	if threads > userMax {
		threads = userMax
	}
	return max(1, threads)
}

// RecommendedDelay suggests a pause between requests based on server
// load.
func RecommendedDelay(infra *client.Document) time.Duration {
	ssinfra := infraSection(infra)
	if ssinfra == nil {
		return time.Second
	}
	load, ok := numeric(ssinfra["charge"])
	if !ok {
		return time.Second
	}
	switch {
	case load > 90:
		return 5 * time.Second
	case load > 75:
		return 3 * time.Second
	case load > 50:
		return 2 * time.Second
	default:
		return time.Second
	}
}

// UserMaxThreads reads the account's thread allowance from a ssuserInfos
// document, falling back to the given default.
func UserMaxThreads(user *client.Document, fallback int) int {
	if user == nil {
		return fallback
	}
	ssuser := user.Section("ssuser")
	if ssuser == nil {
		return fallback
	}
	if v, ok := numeric(ssuser["maxthreads"]); ok && v >= 1 {
		return int(v)
	}
	return fallback
}

func infraSection(infra *client.Document) map[string]any {
	if infra == nil {
		return nil
	}
	return infra.Section("ssinfra")
}

// numeric coerces the loosely typed values the API emits: numbers decode
// as float64, but some fields arrive as numeric strings.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
