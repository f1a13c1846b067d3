// Package router classifies meetings into destination folders by matching
// configured keywords against the meeting title.
package router

import "strings"

// Inbox is the sentinel destination for meetings no rule matches.
const Inbox = "inbox"

// Rule maps a set of keywords to a destination folder. Any keyword
// matching routes to Folder.
type Rule struct {
	Keywords []string
	Folder   string
}

// Router evaluates an ordered rule table. Rules are tested in the order
// given; the first rule with any keyword matching wins. Matching is
// case-insensitive substring matching against the title, not prefix or
// whole-word matching.
type Router struct {
	rules []Rule
}

// New creates a Router over the given rules. Rule order is significant
// and preserved.
func New(rules []Rule) *Router {
	return &Router{rules: rules}
}

// Route returns the destination folder for the given title text, or Inbox
// when no rule matches. An empty or blank title always routes to Inbox;
// keywords are never matched against no data. Route is pure and
// deterministic for a given (title, rule-set) pair.
func (r *Router) Route(title string) string {
	text := strings.ToLower(strings.TrimSpace(title))
	if text == "" {
		return Inbox
	}

	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return rule.Folder
			}
		}
	}

	return Inbox
}

// IsInbox reports whether destination is the inbox sentinel.
func IsInbox(destination string) bool {
	return destination == Inbox
}
