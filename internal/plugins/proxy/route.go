// Package proxy forwards browser API calls to the backend REST API. Every
// route is one declarative Route value served by the same adapter, which
// extracts the bearer token, enforces auth and required fields, makes one
// backend call and relays, reshapes or degrades the answer.
package proxy

import (
	"net/http"
	"time"
)

// Route describes one proxied endpoint.
type Route struct {
	// Name labels the route in logs and metrics.
	Name   string
	Method string

	// Path is the inbound path below /api, with Echo :param segments.
	Path string

	// Upstream is the backend path; :param segments are filled from Path.
	Upstream string

	// RequireAuth answers 401 without calling the backend when no bearer
	// token is present. Optional-auth routes still forward one if present.
	RequireAuth bool

	// DegradeOnError answers 200 with Fallback on any upstream failure.
	DegradeOnError bool
	Fallback       any

	// Required lists body fields that must be present and non-empty.
	Required []string

	// Timeout cancels the backend call and answers 408 when it expires.
	// Zero leaves the client's transport timeout in charge.
	Timeout time.Duration

	// Reshape rewrites a successful JSON body before it is relayed.
	Reshape func(any) any
}

// Fallback payloads for degradable routes.
var (
	FallbackCategories = []map[string]any{
		{"id": 1, "name": "Blockchain Basics", "slug": "blockchain-basics"},
		{"id": 2, "name": "Smart Contracts", "slug": "smart-contracts"},
		{"id": 3, "name": "DeFi", "slug": "defi"},
		{"id": 4, "name": "NFTs", "slug": "nfts"},
		{"id": 5, "name": "Web3 Development", "slug": "web3-development"},
	}

	FallbackStats = map[string]any{
		"totalUsers":     0,
		"totalCourses":   0,
		"totalQuizzes":   0,
		"totalNfts":      0,
		"activeLearners": 0,
		"rewardsIssued":  0,
	}

	FallbackPlans = []map[string]any{
		{
			"id":       "free",
			"name":     "Free",
			"price":    0,
			"interval": "month",
			"features": []string{"Access to free courses", "Community quizzes"},
		},
	}
)

// Routes returns the route table. analyticsTimeout bounds the analytics
// routes, the only ones with an explicit upstream deadline.
func Routes(analyticsTimeout time.Duration) []Route {
	return []Route{
		{Name: "courses.list", Method: http.MethodGet, Path: "/courses", Upstream: "/courses/",
			Reshape: Paginated("courses")},
		{Name: "courses.categories", Method: http.MethodGet, Path: "/courses/categories", Upstream: "/courses/categories/",
			DegradeOnError: true, Fallback: FallbackCategories},
		{Name: "courses.detail", Method: http.MethodGet, Path: "/courses/:id", Upstream: "/courses/:id/"},
		{Name: "courses.enroll", Method: http.MethodPost, Path: "/courses/:id/enroll", Upstream: "/courses/:id/enroll/",
			RequireAuth: true},
		{Name: "courses.progress", Method: http.MethodGet, Path: "/courses/:id/progress", Upstream: "/courses/:id/progress/",
			RequireAuth: true},
		{Name: "courses.progress.update", Method: http.MethodPut, Path: "/courses/:id/progress", Upstream: "/courses/:id/progress/",
			RequireAuth: true},

		{Name: "stats.platform", Method: http.MethodGet, Path: "/stats", Upstream: "/stats/",
			DegradeOnError: true, Fallback: FallbackStats, Reshape: CamelKeys},

		{Name: "quizzes.list", Method: http.MethodGet, Path: "/quizzes", Upstream: "/quizzes/", RequireAuth: true},
		{Name: "quizzes.detail", Method: http.MethodGet, Path: "/quizzes/:id", Upstream: "/quizzes/:id/", RequireAuth: true},
		{Name: "quizzes.submit", Method: http.MethodPost, Path: "/quizzes/:id/submit", Upstream: "/quizzes/:id/submit/",
			RequireAuth: true, Required: []string{"answers"}},

		{Name: "quests.list", Method: http.MethodGet, Path: "/quests", Upstream: "/quests/", RequireAuth: true},
		{Name: "quests.claim", Method: http.MethodPost, Path: "/quests/:id/claim", Upstream: "/quests/:id/claim/", RequireAuth: true},

		{Name: "nfts.list", Method: http.MethodGet, Path: "/nfts", Upstream: "/nfts/", RequireAuth: true},
		{Name: "nfts.mint", Method: http.MethodPost, Path: "/nfts/mint", Upstream: "/nfts/mint/",
			RequireAuth: true, Required: []string{"course_id"}},

		{Name: "subscriptions.plans", Method: http.MethodGet, Path: "/subscriptions/plans", Upstream: "/subscriptions/plans/",
			DegradeOnError: true, Fallback: FallbackPlans},
		{Name: "subscriptions.current", Method: http.MethodGet, Path: "/subscriptions/current", Upstream: "/subscriptions/current/",
			RequireAuth: true},
		{Name: "subscriptions.subscribe", Method: http.MethodPost, Path: "/subscriptions", Upstream: "/subscriptions/",
			RequireAuth: true, Required: []string{"plan_id"}},
		// Access checks fail closed: no fallback, an unreachable backend is an error.
		{Name: "subscriptions.access", Method: http.MethodGet, Path: "/subscriptions/access/:courseId", Upstream: "/subscriptions/access/:courseId/",
			RequireAuth: true},

		{Name: "analytics.dashboard", Method: http.MethodGet, Path: "/analytics/dashboard", Upstream: "/analytics/dashboard/",
			RequireAuth: true, Timeout: analyticsTimeout},
		{Name: "analytics.events", Method: http.MethodPost, Path: "/analytics/events", Upstream: "/analytics/events/",
			RequireAuth: true, Timeout: analyticsTimeout},

		{Name: "chat.send", Method: http.MethodPost, Path: "/chat", Upstream: "/chat/",
			RequireAuth: true, Required: []string{"message"}},

		{Name: "profile.update", Method: http.MethodPut, Path: "/profile", Upstream: "/auth/profile/", RequireAuth: true},
	}
}
