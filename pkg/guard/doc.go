// Package guard decides, for every navigation and every privileged
// render, whether the visitor may proceed.
//
// There are two layers. [Guard] runs at the request boundary before
// any page code: a cheap cookie-presence rule for protected and auth
// pages, then a server role verification for admin paths only,
// fail-closed. [Component] runs at the render boundary over the
// reactive session store and re-checks as the session resolves. The
// middleware acts before any client state exists; the component acts
// after it changes. Neither replaces the other.
//
// Denials are silent redirects: unauthorized visitors learn nothing
// about which pages exist.
package guard
