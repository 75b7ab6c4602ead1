package event

// InvalidInvocationResultError reports a handler return value that does not
// satisfy the invocation contract. It is recovered into a 500 at the
// serving layer, never propagated.
type InvalidInvocationResultError struct {
	Reason string
}

func (e *InvalidInvocationResultError) Error() string {
	return "invalid invocation result: " + e.Reason
}
