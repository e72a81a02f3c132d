// Package knockout implements multi-round elimination voting parties. The
// core state machine lives in the party package; api serves it over HTTP,
// store persists it, and network announces its events over gossipsub.
package knockout
