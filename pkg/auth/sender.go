// Package auth contains utilities to perform authentication.
package auth

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bluenviron/rtspcam/pkg/base"
	"github.com/bluenviron/rtspcam/pkg/headers"
)

func md5Hex(in string) string {
	h := md5.Sum([]byte(in))
	return hex.EncodeToString(h[:])
}

func sha256Hex(in string) string {
	h := sha256.Sum256([]byte(in))
	return hex.EncodeToString(h[:])
}

func digestHex(algo *headers.AuthAlgorithm, in string) string {
	if algo != nil && *algo == headers.AuthAlgorithmSHA256 {
		return sha256Hex(in)
	}
	return md5Hex(in)
}

// Sender allows to send credentials.
// It requires a WWW-Authenticate header (provided by the server)
// and a set of credentials.
// Once initialized, it can authorize any number of requests
// until the server rejects it.
type Sender struct {
	WWWAuth base.HeaderValue
	User    string
	Pass    string

	authHeader *headers.Authenticate
}

// Initialize initializes a Sender.
// When the server offers multiple methods, Digest is preferred over Basic,
// and SHA-256 is preferred over MD5.
func (se *Sender) Initialize() error {
	if se.User == "" {
		return fmt.Errorf("server requires credentials, but none were provided")
	}

	for _, v := range se.WWWAuth {
		var auth headers.Authenticate
		err := auth.Unmarshal(base.HeaderValue{v})
		if err != nil {
			continue // ignore unrecognized headers
		}

		if se.authHeader == nil ||
			(se.authHeader.Method == headers.AuthMethodBasic && auth.Method == headers.AuthMethodDigest) ||
			(auth.Method == headers.AuthMethodDigest &&
				auth.Algorithm != nil && *auth.Algorithm == headers.AuthAlgorithmSHA256) {
			se.authHeader = &auth
		}
	}

	if se.authHeader == nil {
		return fmt.Errorf("no authentication methods available")
	}

	return nil
}

// Nonce returns the nonce of the challenge in use.
// It is empty when Basic authentication is in use.
func (se *Sender) Nonce() string {
	return se.authHeader.Nonce
}

// Method returns the authentication method in use.
func (se *Sender) Method() headers.AuthMethod {
	return se.authHeader.Method
}

// AddAuthorization adds the Authorization header to a Request.
func (se *Sender) AddAuthorization(req *base.Request) {
	urStr := req.URL.CloneWithoutCredentials().String()

	h := headers.Authorization{
		Method:   se.authHeader.Method,
		Username: se.User,
	}

	if se.authHeader.Method == headers.AuthMethodBasic {
		h.BasicPass = se.Pass
	} else { // digest
		h.Realm = se.authHeader.Realm
		h.Nonce = se.authHeader.Nonce
		h.URI = urStr
		h.Opaque = se.authHeader.Opaque
		h.Algorithm = se.authHeader.Algorithm

		algo := se.authHeader.Algorithm
		h.Response = digestHex(algo, digestHex(algo, se.User+":"+se.authHeader.Realm+":"+se.Pass)+":"+
			se.authHeader.Nonce+":"+digestHex(algo, string(req.Method)+":"+urStr))
	}

	if req.Header == nil {
		req.Header = make(base.Header)
	}

	req.Header["Authorization"] = h.Marshal()
}
