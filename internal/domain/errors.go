package domain

type errString string

func (e errString) Error() string { return string(e) }

// ErrPolicyNotFound is returned by policy lookups when an org has no
// configured requirement policy.
const ErrPolicyNotFound = errString("requirement policy not found")
