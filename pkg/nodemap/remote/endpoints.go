package remote

import "net/http"

// endpoint describes one remote operation.
type endpoint struct {
	name   string
	label  string
	method string
	path   string
	auth   bool
}

// Endpoint table. Paths are relative to the client's base URL.
var (
	epLogin          = endpoint{"login", "Login", http.MethodPost, "/auth/login", false}
	epRegister       = endpoint{"register", "Registration", http.MethodPost, "/auth/register", false}
	epLogout         = endpoint{"logout", "Logout", http.MethodPost, "/auth/logout", true}
	epStatus         = endpoint{"status", "Status check", http.MethodGet, "/api/status", false}
	epListGraphs     = endpoint{"getnodemaps", "Fetching nodemaps", http.MethodGet, "/creation/getnodemaps", true}
	epFetchGraph     = endpoint{"getnodemapdata", "Fetching nodemap data", http.MethodPost, "/creation/getnodemapdata", true}
	epCreateGraph    = endpoint{"createmap", "Nodemap creation", http.MethodPost, "/creation/createmap", true}
	epSaveGraph      = endpoint{"savenodemap", "Saving nodemap", http.MethodPost, "/creation/savenodemap", true}
	epToggleFavorite = endpoint{"togglenodemapfavorite", "Toggling favorite", http.MethodPost, "/creation/togglenodemapfavorite", true}
	epCreateAgent    = endpoint{"createagent", "Agent creation", http.MethodPost, "/creation/createagent", true}
	epListAgents     = endpoint{"getagents", "Fetching agents", http.MethodGet, "/creation/getagents", true}
)
