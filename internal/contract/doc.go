// Package contract validates a view's ref declarations against the rules
// the component runtime relies on: listener configuration shape and the
// naming of element ids that refs bind to.
package contract
