package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SearchCriteria are the structured filters of a user search.
type SearchCriteria struct {
	Location string
	Language string
	MinRepos *int

	// ContributedIn is kept with the criteria but the user search API has no
	// qualifier for it, so it never produces a query token.
	ContributedIn string
}

// QueryStrings returns the query strings whose intersection represents the
// criteria. Blank fields are omitted and the remaining qualifiers are ANDed
// into a single string, each token carrying its leading space.
func (c SearchCriteria) QueryStrings() []string {
	var b strings.Builder

	b.WriteString(qualifier("location", c.Location))
	b.WriteString(qualifier("language", c.Language))
	if c.MinRepos != nil {
		b.WriteString(qualifier("repos", strconv.Itoa(*c.MinRepos)))
	}

	return []string{b.String()}
}

func qualifier(name, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return fmt.Sprintf(" %s:%s", name, value)
}
