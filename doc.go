// Package identity implements an identity resource service: user lifecycle
// management (registration, activation, credential and email changes),
// role-backed ownership metadata, and authorization-gated CRUD over
// owner-bearing resources such as authentication logs.
//
// Mutations on gated resources go through an external policy decision point
// before they reach the store, and lifecycle operations publish domain events
// on a topic broker so collaborators (rendering, notification) can react
// asynchronously.
package identity
