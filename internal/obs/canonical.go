package obs

import "strings"

// CanonicalPath collapses resource identifiers embedded in URL paths so
// metric label cardinality stays bounded.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch {
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "accounts":
		if len(parts) == 3 {
			return "/v1/accounts/:id"
		}
		if len(parts) == 4 && (parts[3] == "ledger" || parts[3] == "earnings") {
			return "/v1/accounts/:id/" + parts[3]
		}
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "network":
		if len(parts) == 3 {
			return "/v1/network/:id"
		}
		if len(parts) == 4 && parts[3] == "chain" {
			return "/v1/network/:id/chain"
		}
	case len(parts) == 5 && parts[0] == "v1" && parts[1] == "admin" && parts[2] == "accounts":
		return "/v1/admin/accounts/:id/" + parts[4]
	case len(parts) == 5 && parts[0] == "v1" && parts[1] == "admin" && parts[2] == "transactions":
		return "/v1/admin/transactions/:id/" + parts[4]
	}
	return path
}
