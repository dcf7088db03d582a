// Package model holds the GitHub user types shared by the search, enrichment
// and export layers, together with the position-indexed ResultSet.
package model

// SummaryUser is a user as returned by one page of the search endpoint.
type SummaryUser struct {
	ID        int64   `json:"id"`
	Login     string  `json:"login"`
	AvatarURL string  `json:"avatar_url"`
	HTMLURL   string  `json:"html_url"`
	URL       string  `json:"url"`
	Type      string  `json:"type"`
	Score     float64 `json:"score"`
}

// User is a fully loaded user as returned by the detail endpoint.
// A User always supersedes a SummaryUser with the same ID.
type User struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Blog        string `json:"blog"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	URL         string `json:"url"`
	Type        string `json:"type"`
	Hireable    *bool  `json:"hireable"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

// Summary returns the lightweight view of u.
func (u *User) Summary() SummaryUser {
	return SummaryUser{
		ID:        u.ID,
		Login:     u.Login,
		AvatarURL: u.AvatarURL,
		HTMLURL:   u.HTMLURL,
		URL:       u.URL,
		Type:      u.Type,
	}
}

// Record is one ResultSet slot. Full is nil until the user is enriched.
type Record struct {
	Summary SummaryUser
	Full    *User
}

// ID returns the GitHub user id of the slot.
func (r Record) ID() int64 {
	if r.Full != nil {
		return r.Full.ID
	}
	return r.Summary.ID
}

// Login returns the login of the slot.
func (r Record) Login() string {
	if r.Full != nil {
		return r.Full.Login
	}
	return r.Summary.Login
}

// URL returns the API URL of the user. Exports and listings use it for
// loaded and unloaded slots alike.
func (r Record) URL() string {
	if r.Full != nil {
		return r.Full.URL
	}
	return r.Summary.URL
}

// IsFull reports whether the slot holds a fully loaded user.
func (r Record) IsFull() bool {
	return r.Full != nil
}
