package driver

import "time"

// Policy bounds every wait the driver performs.
type Policy struct {
	LoginPoll     time.Duration
	LoginTimeout  time.Duration
	EnrollTimeout time.Duration

	// CheckoutAttempts polls of CheckoutPoll each; the acquisition control
	// is triggered again every ReclickEvery attempts.
	CheckoutAttempts int
	CheckoutPoll     time.Duration
	ReclickEvery     int

	ConfirmPoll    time.Duration
	ConfirmTimeout time.Duration

	// StepTimeout caps a single site call.
	StepTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		LoginPoll:        2 * time.Second,
		LoginTimeout:     5 * time.Minute,
		EnrollTimeout:    5 * time.Minute,
		CheckoutAttempts: 20,
		CheckoutPoll:     time.Second,
		ReclickEvery:     5,
		ConfirmPoll:      time.Second,
		ConfirmTimeout:   30 * time.Second,
		StepTimeout:      45 * time.Second,
	}
}

// withDefaults replaces non-positive fields with DefaultPolicy values.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	durs := []struct{ dst, def *time.Duration }{
		{&p.LoginPoll, &d.LoginPoll},
		{&p.LoginTimeout, &d.LoginTimeout},
		{&p.EnrollTimeout, &d.EnrollTimeout},
		{&p.CheckoutPoll, &d.CheckoutPoll},
		{&p.ConfirmPoll, &d.ConfirmPoll},
		{&p.ConfirmTimeout, &d.ConfirmTimeout},
		{&p.StepTimeout, &d.StepTimeout},
	}
	for _, f := range durs {
		if *f.dst <= 0 {
			*f.dst = *f.def
		}
	}
	if p.CheckoutAttempts <= 0 {
		p.CheckoutAttempts = d.CheckoutAttempts
	}
	if p.ReclickEvery <= 0 {
		p.ReclickEvery = d.ReclickEvery
	}
	return p
}

// checkoutCeiling bounds the whole checkout wait: every poll interval plus
// one site call of slack.
func (p Policy) checkoutCeiling() time.Duration {
	return time.Duration(p.CheckoutAttempts)*p.CheckoutPoll + p.StepTimeout
}
