package client

// CredentialsProvider supplies the username and secret used for every request.
// It is consulted per request so a secret can be entered after construction.
type CredentialsProvider interface {
	Credentials() (username, secret string)
}

// StaticCredentials is a fixed username/secret pair.
type StaticCredentials struct {
	Username string
	Secret   string
}

// Credentials implements CredentialsProvider.
func (s StaticCredentials) Credentials() (string, string) {
	return s.Username, s.Secret
}

// CredentialsFunc adapts a function to CredentialsProvider.
type CredentialsFunc func() (username, secret string)

// Credentials implements CredentialsProvider.
func (f CredentialsFunc) Credentials() (string, string) {
	return f()
}
