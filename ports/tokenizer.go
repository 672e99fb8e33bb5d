package ports

import "github.com/layer-3/wide/core"

// Tokenizer converts between sessions and the token carried by the client
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}
