// Package toast is the alert sink boundary. The session layer only
// emits events into a [Notifier]; rendering them is someone else's
// job.
package toast
