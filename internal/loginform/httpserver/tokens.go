package httpserver

import (
	"errors"

	"github.com/gorilla/securecookie"
)

const (
	tokenName       = "login_form"
	generatedKeyLen = 32
)

var errInvalidToken = errors.New("httpserver: invalid form token")

// tokenCodec signs form ids so URLs cannot address forms that were never issued.
type tokenCodec struct {
	sc *securecookie.SecureCookie
}

func newTokenCodec(hashKey []byte) (*tokenCodec, error) {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(generatedKeyLen)
		if hashKey == nil {
			return nil, errors.New("httpserver: generate form token key")
		}
	}
	sc := securecookie.New(hashKey, nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	// Form lifetime is enforced by the registry.
	sc.MaxAge(0)
	return &tokenCodec{sc: sc}, nil
}

func (c *tokenCodec) Encode(id string) (string, error) {
	return c.sc.Encode(tokenName, id)
}

func (c *tokenCodec) Decode(token string) (string, error) {
	if token == "" {
		return "", errInvalidToken
	}
	var id string
	if err := c.sc.Decode(tokenName, token, &id); err != nil || id == "" {
		return "", errInvalidToken
	}
	return id, nil
}
