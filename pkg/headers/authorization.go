package headers

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/bluenviron/rtspcam/pkg/base"
)

// Authorization is an Authorization header.
type Authorization struct {
	// authentication method
	Method AuthMethod

	// username
	Username string

	//
	// Basic authentication fields
	//

	// password
	BasicPass string

	//
	// Digest authentication fields
	//

	// realm
	Realm string

	// nonce
	Nonce string

	// URI
	URI string

	// response
	Response string

	// opaque
	Opaque *string

	// algorithm
	Algorithm *AuthAlgorithm
}

// Unmarshal decodes an Authorization header.
func (h *Authorization) Unmarshal(v base.HeaderValue) error {
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

		var tmp []byte
		tmp, err = base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return fmt.Errorf("invalid value")
		}

		user, pass, ok := strings.Cut(string(tmp), ":")
		if !ok {
			return fmt.Errorf("invalid value")
		}

		h.Username, h.BasicPass = user, pass
		return nil

	case "Digest":
		h.Method = AuthMethodDigest

	default:
		return fmt.Errorf("invalid method (%s)", method)
	}

	kvs, err := parseAuthParams(rest)
	if err != nil {
		return err
	}

	received := 0

	for k, rv := range kvs {
		v := rv

		switch k {
		case "username":
			h.Username = v
			received++

		case "realm":
			h.Realm = v
			received++

		case "nonce":
			h.Nonce = v
			received++

		case "uri":
			h.URI = v
			received++

		case "response":
			h.Response = v
			received++

		case "opaque":
			h.Opaque = &v

		case "algorithm":
			var a AuthAlgorithm
			a, err = unmarshalAlgorithm(v)
			if err != nil {
				return err
			}
			h.Algorithm = &a
		}
	}

	if received != 5 {
		return fmt.Errorf("one or more digest fields are missing")
	}

	return nil
}

// Marshal encodes an Authorization header.
func (h Authorization) Marshal() base.HeaderValue {
	if h.Method == AuthMethodBasic {
		return base.HeaderValue{"Basic " +
			base64.StdEncoding.EncodeToString([]byte(h.Username+":"+h.BasicPass))}
	}

	ret := "Digest username=\"" + h.Username + "\", realm=\"" + h.Realm + "\", " +
		"nonce=\"" + h.Nonce + "\", uri=\"" + h.URI + "\", response=\"" + h.Response + "\""

	if h.Opaque != nil {
		ret += ", opaque=\"" + *h.Opaque + "\""
	}

	if h.Algorithm != nil {
		ret += ", algorithm=\"" + h.Algorithm.marshal() + "\""
	}

	return base.HeaderValue{ret}
}
