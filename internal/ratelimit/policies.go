package ratelimit

import "time"

// Fixed per-action limits. Each write endpoint is bound to exactly one.
var (
	DreamDeep   = Policy{Action: "dream-deep", MaxRequests: 1, Window: 10 * time.Minute}
	DreamShared = Policy{Action: "dream-shared", MaxRequests: 2, Window: time.Hour}
	Comment     = Policy{Action: "comment", MaxRequests: 30, Window: time.Hour}
	Vote        = Policy{Action: "vote", MaxRequests: 60, Window: time.Hour}
	Request     = Policy{Action: "request", MaxRequests: 1, Window: 30 * time.Minute}
	Respond     = Policy{Action: "respond", MaxRequests: 10, Window: time.Hour}
	Feedback    = Policy{Action: "feedback", MaxRequests: 5, Window: 24 * time.Hour}
	Donate      = Policy{Action: "donate", MaxRequests: 10, Window: time.Hour}
	Register    = Policy{Action: "register", MaxRequests: 3, Window: time.Hour}
	Claim       = Policy{Action: "claim", MaxRequests: 5, Window: time.Hour}
	Verify      = Policy{Action: "verify", MaxRequests: 10, Window: time.Hour}
	Signup      = Policy{Action: "signup", MaxRequests: 3, Window: 10 * time.Minute}
	Login       = Policy{Action: "login", MaxRequests: 10, Window: 5 * time.Minute}
)

// Policies lists every configured policy.
func Policies() []Policy {
	return []Policy{
		DreamDeep, DreamShared, Comment, Vote, Request, Respond,
		Feedback, Donate, Register, Claim, Verify, Signup, Login,
	}
}
