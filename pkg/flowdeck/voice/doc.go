// Package voice starts and tracks outbound voice-assistant calls.
//
// A call is configured from a Telephone node ([NewSessionConfig]), started
// through a [Caller], and then followed through provider events:
//
//	starting --call-start--> ringing --speech-start--> connected --call-end--> ended
//
// call-end ends the session from any state. [Registry] keeps at most one
// live session per user.
package voice
