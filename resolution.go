package comics

import "context"

// RequestKind identifies how a comic should be resolved.
type RequestKind int

const (
	RequestRandom RequestKind = iota
	RequestByID
	RequestByQuery
)

// String returns the name of the request kind.
func (k RequestKind) String() string {
	switch k {
	case RequestRandom:
		return "random"
	case RequestByID:
		return "id"
	case RequestByQuery:
		return "query"
	}
	return "unknown"
}

// Request asks the resolver for a comic.
type Request struct {
	Kind  RequestKind
	Num   int
	Query string
}

// ByID requests the comic with the given number.
func ByID(num int) Request {
	return Request{Kind: RequestByID, Num: num}
}

// ByQuery requests the comic that best matches free text.
func ByQuery(text string) Request {
	return Request{Kind: RequestByQuery, Query: text}
}

// Random requests a uniformly random comic.
func Random() Request {
	return Request{Kind: RequestRandom}
}

// MatchKind describes how a resolved comic was selected.
type MatchKind string

// MatchKind constants for Resolution.
const (
	MatchExact    MatchKind = "exact"
	MatchSearched MatchKind = "searched"
	MatchRandom   MatchKind = "random"
)

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Comic *Comic    `json:"comic"`
	Match MatchKind `json:"match"`

	// Strength is the number of query tokens found in the comic's keywords.
	// Only set for MatchSearched.
	Strength int `json:"strength,omitempty"`

	// Query is the original text of a ByQuery request.
	Query string `json:"query,omitempty"`
}

// Fallback reports whether a query found no match and a random comic was
// returned instead. Callers should warn that the comic may be unrelated.
func (r *Resolution) Fallback() bool {
	return r.Match == MatchRandom && r.Query != ""
}

// Resolver selects comics from the catalog.
type Resolver interface {
	// Resolve returns the comic for the request.
	// Returns ENOTFOUND if a requested number is not in the catalog and
	// EEMPTY if a random pick is needed but the catalog is empty.
	Resolve(ctx context.Context, req Request) (*Resolution, error)
}
