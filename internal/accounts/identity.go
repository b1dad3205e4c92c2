package accounts

import (
	"net/url"
	"strings"
)

// NormalizeHomeserver adds https:// when no scheme is given and drops a
// trailing slash.
func NormalizeHomeserver(hs string) string {
	hs = strings.TrimSpace(hs)
	if hs == "" {
		return ""
	}
	if !strings.Contains(hs, "://") {
		hs = "https://" + hs
	}
	return strings.TrimRight(hs, "/")
}

// Host returns the lowercase host of a homeserver URL.
func Host(hs string) string {
	u, err := url.Parse(NormalizeHomeserver(hs))
	if err != nil || u.Host == "" {
		return strings.ToLower(hs)
	}
	return strings.ToLower(u.Host)
}

// CanonicalUserID turns "alice", "@alice" or "@alice:server" into a
// lowercase full user id, using the homeserver host when no server part
// is given.
func CanonicalUserID(homeserver, user string) string {
	user = strings.ToLower(strings.TrimSpace(user))
	user = strings.TrimPrefix(user, "@")
	if strings.Contains(user, ":") {
		return "@" + user
	}
	return "@" + user + ":" + Host(homeserver)
}

func localpart(userID string) string {
	local, _, _ := strings.Cut(strings.TrimPrefix(strings.ToLower(userID), "@"), ":")
	return local
}
