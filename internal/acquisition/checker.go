package acquisition

import "context"

// Checker answers whether an identity may obtain a modpack.
type Checker struct {
	remote Remote
}

// NewChecker constructs a Checker.
func NewChecker(remote Remote) *Checker {
	return &Checker{remote: remote}
}

// Check queries access for subjectID. Anonymous identities get a local negative
// without contacting the remote. Remote failures are reported as *AccessCheckFailedError.
func (c *Checker) Check(ctx context.Context, subjectID string, identity *Identity) (Check, error) {
	if identity.Anonymous() {
		return Check{Decision: AccessDecision{CanAccess: false, Reason: "authentication required"}}, nil
	}

	resp, err := c.remote.CheckAccess(ctx, subjectID, identity.token())
	if err != nil {
		return Check{}, &AccessCheckFailedError{Cause: err}
	}

	out := Check{Decision: AccessDecision{CanAccess: resp.CanAccess, Reason: resp.Reason}}
	if resp.ModpackAccessInfo != nil {
		subject := SubjectFromInfo(*resp.ModpackAccessInfo)
		if subject.ID == "" {
			subject.ID = subjectID
		}
		out.Subject = &subject
		if !resp.CanAccess && subject.Method == MethodTwitch {
			out.Decision.RequiredChannels = subject.TwitchChannels
		}
	}
	return out, nil
}
