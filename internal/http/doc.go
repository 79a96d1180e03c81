// Package http provides HTTP handlers and middleware for the marketplace API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}. The
//     token is returned in the body and surfaced via the `X-Session-Token`
//     header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the current session token extracted
//     from the Authorization header or session cookie. Returns 204 No Content
//     and clears the cookie.
//   - DELETE /sessions/{token}: administrator driven revocation of an
//     arbitrary token.
//   - GET /users, POST /users, GET/PUT/DELETE /users/{id}: account endpoints
//     exchanging the `userDTO` payload defined in user_handler.go. POST /users
//     is open for self sign-up; administrators may additionally set role and
//     admin flags.
//   - GET/POST /workers/{id}/availability, PUT/DELETE /availability/{id},
//     DELETE /workers/{id}/availability: availability rule endpoints
//     exchanging the `ruleDTO` payload defined in availability_handler.go.
//     Responses carry conflict warnings; warnings never block a save.
//   - GET /workers/{id}/calendar?month=YYYY-MM: a fixed 42-cell month grid
//     with expanded occurrences and conflict warnings.
//   - GET /workers/{id}/availability.ics: iCalendar export of the expanded
//     occurrences, one VEVENT per occurrence.
//   - GET/POST /gigs, GET /gigs/{id}, POST /gigs/{id}/accept,
//     POST /gigs/{id}/complete, POST /gigs/{id}/cancel: gig lifecycle
//     endpoints exchanging the `gigDTO` payload defined in gig_handler.go.
//   - POST /suggestions: chat-reply suggestions for a message transcript.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
