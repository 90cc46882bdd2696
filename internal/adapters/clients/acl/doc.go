// Package acl is the anti-corruption layer between the remote posts feed and
// the quote domain.
//
// The remote service speaks in "posts" ({id, userId, title, body}); the domain
// speaks in quotes ({text, category}). Nothing outside this package sees a
// post. Translation rules:
//
//   - A fetched post becomes a quote whose text is the trimmed title and whose
//     category is [domain.ServerCategory]. Posts with a blank title are dropped.
//   - An outgoing quote becomes a post with title = text, body = category and
//     userId = 1. The echoed post's title is returned as a server quote.
//
// Transport failures and unexpected statuses become domain errors:
//
//   - 400/422 → [domain.ErrValidation]
//   - 404, 429, 5xx, network errors → [domain.ErrUnavailable]
//
// Client-level errors ([clients.ErrCircuitOpen], [clients.ErrMaxRetriesExceeded])
// also become [domain.ErrUnavailable] with the operation named in the reason.
package acl
