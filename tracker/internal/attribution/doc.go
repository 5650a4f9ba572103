// Package attribution captures the UTM parameters a session arrived with.
//
// FromURL extracts them from a landing URL. Session remembers the first
// non-empty capture for the life of the session, so events logged after
// navigation keep the original campaign.
package attribution
