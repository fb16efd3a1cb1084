// Package headers contains various RTSP headers.
package headers

import (
	"fmt"
	"strings"

	"github.com/bluenviron/rtspcam/pkg/base"
)

// AuthMethod is an authentication method.
type AuthMethod int

// authentication methods.
const (
	AuthMethodBasic AuthMethod = iota
	AuthMethodDigest
)

// AuthAlgorithm is a digest algorithm.
type AuthAlgorithm int

// digest algorithms.
const (
	AuthAlgorithmMD5 AuthAlgorithm = iota
	AuthAlgorithmSHA256
)

func (a AuthAlgorithm) marshal() string {
	if a == AuthAlgorithmSHA256 {
		return "SHA-256"
	}
	return "MD5"
}

func unmarshalAlgorithm(v string) (AuthAlgorithm, error) {
	switch strings.ToLower(v) {
	case "md5":
		return AuthAlgorithmMD5, nil

	case "sha-256":
		return AuthAlgorithmSHA256, nil

	default:
		return 0, fmt.Errorf("unrecognized algorithm: %v", v)
	}
}

func splitMethod(v string) (string, string, error) {
	i := strings.IndexByte(v, ' ')
	if i < 0 {
		return "", "", fmt.Errorf("unable to split between method and keys (%v)", v)
	}
	return v[:i], v[i+1:], nil
}

// Authenticate is a WWW-Authenticate header.
type Authenticate struct {
	// authentication method
	Method AuthMethod

	// realm
	Realm string

	//
	// Digest authentication fields
	//

	// nonce
	Nonce string

	// opaque
	Opaque *string

	// stale
	Stale *string

	// algorithm
	Algorithm *AuthAlgorithm
}

// Unmarshal decodes a WWW-Authenticate header.
func (h *Authenticate) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	method, rest, err := splitMethod(v[0])
	if err != nil {
		return err
	}

	switch method {
	case "Basic":
		h.Method = AuthMethodBasic

	case "Digest":
		h.Method = AuthMethodDigest

	default:
		return fmt.Errorf("invalid method (%s)", method)
	}

	kvs, err := parseAuthParams(rest)
	if err != nil {
		return err
	}

	realmReceived := false
	nonceReceived := false

	for k, rv := range kvs {
		v := rv

		switch k {
		case "realm":
			h.Realm = v
			realmReceived = true

		case "nonce":
			h.Nonce = v
			nonceReceived = true

		case "opaque":
			h.Opaque = &v

		case "stale":
			h.Stale = &v

		case "algorithm":
			var a AuthAlgorithm
			a, err = unmarshalAlgorithm(v)
			if err != nil {
				return err
			}
			h.Algorithm = &a
		}
	}

	if !realmReceived {
		return fmt.Errorf("realm is missing")
	}

	if h.Method == AuthMethodDigest && !nonceReceived {
		return fmt.Errorf("nonce is missing")
	}

	return nil
}

// Marshal encodes a WWW-Authenticate header.
func (h Authenticate) Marshal() base.HeaderValue {
	if h.Method == AuthMethodBasic {
		return base.HeaderValue{"Basic realm=\"" + h.Realm + "\""}
	}

	ret := "Digest realm=\"" + h.Realm + "\", nonce=\"" + h.Nonce + "\""

	if h.Opaque != nil {
		ret += ", opaque=\"" + *h.Opaque + "\""
	}

	if h.Stale != nil {
		ret += ", stale=\"" + *h.Stale + "\""
	}

	if h.Algorithm != nil {
		ret += ", algorithm=\"" + h.Algorithm.marshal() + "\""
	}

	return base.HeaderValue{ret}
}
