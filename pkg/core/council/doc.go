// Package council orchestrates multi-party AI council sessions.
//
// An Orchestrator owns one session at a time. In auto mode it asks the
// dialogue client for a whole script and synthesizes speech for it round by
// round; in live mode it alternates user turns with generated replies.
//
// # Rounds
//
// A round is a run of consecutive messages as long as the roster, so every
// panelist speaks once per round. Round k spans message indexes
// [k*size, (k+1)*size). Audio for round 0 is synthesized before StartCouncil
// returns; later rounds are synthesized by a background Task while earlier
// rounds play, and CheckAndGenerateNextRound lets the playback driver pull
// the next round forward once the current one is half done.
//
// # Live State Machine
//
// Live sessions progress through these states:
//
//	AWAITING_USER → AI_GENERATING → AI_RESPONDING → AWAITING_USER
//	                      │
//	                      └──────→ AI_GENERATION_FAILED → AWAITING_USER
//
// A failed reply never ends the session: GenerateLiveResponse returns no
// message and the user may try again.
package council
