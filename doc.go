// Package users implements the account and authentication core of the
// service: credential verification with transparent hash upgrades, password
// policy enforcement, bearer token issuance for API clients, and the user
// lifecycle operations (registration, login, password reset, email
// verification, profile updates).
//
// Trust domains:
//   - API clients authenticate with short lived JWT bearer tokens signed with
//     a TokenSecret. Tokens are stateless; validity is signature plus expiry.
//   - The administrative console authenticates through a cookie backed server
//     session implemented in the admin subpackage and signed with a separate
//     SessionSecret. Neither domain validates the other's artifacts.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter. Every lifecycle command
//     and the authenticator describe registration, login, password reset,
//     verification, and profile update events through it. Sinks run
//     best-effort (errors are logged) so observers can forward to a database
//     or queue without blocking authentication.
package users
