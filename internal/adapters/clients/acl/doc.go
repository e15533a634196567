// Package acl is the anti-corruption layer between downstream HTTP APIs
// and the domain.
//
// External DTOs stay unexported inside this package. Adapters translate
// them into domain values and map transport failures and HTTP statuses
// onto domain errors with [MapHTTPError], so the application layer only
// ever sees domain types.
//
// [PostsAdapter] serves the quote sync against a JSONPlaceholder-style
// posts API: a post becomes a server quote with id "srv-<id>", and a local
// quote is uploaded as a new post.
package acl
