package identity

// AccountIdentity adapts an Account into the Identity interface for token
// generation.
type AccountIdentity struct {
	account *Account
}

// NewIdentityFromAccount returns an Identity adapter for the provided account.
func NewIdentityFromAccount(account *Account) Identity {
	if account == nil {
		return nil
	}
	return AccountIdentity{account: account}
}

// ID returns the account's ID as a string.
func (a AccountIdentity) ID() string {
	if a.account == nil {
		return ""
	}
	return a.account.ID.String()
}

// Email returns the account's email address.
func (a AccountIdentity) Email() string {
	if a.account == nil {
		return ""
	}
	return a.account.Email
}

// FirstName returns the account's given name.
func (a AccountIdentity) FirstName() string {
	if a.account == nil {
		return ""
	}
	return a.account.FirstName
}

// IsAdmin reports whether the account has superuser rights.
func (a AccountIdentity) IsAdmin() bool {
	if a.account == nil {
		return false
	}
	return a.account.IsAdmin()
}

// Active reports the account's lifecycle flag.
func (a AccountIdentity) Active() bool {
	if a.account == nil {
		return false
	}
	return a.account.IsActive
}
