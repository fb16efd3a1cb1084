package headers

import (
	"fmt"
	"strings"
)

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

func skipSpaces(str string) string {
	for len(str) > 0 && isSpace(str[0]) {
		str = str[1:]
	}
	return str
}

func readParamKey(origstr string, str string) (string, string, error) {
	i := strings.IndexAny(str, "=,")
	if i < 0 || str[i] != '=' {
		return "", "", fmt.Errorf("unable to find key (%v)", origstr)
	}

	key := strings.TrimRight(str[:i], " \t")
	if key == "" {
		return "", "", fmt.Errorf("empty key (%v)", origstr)
	}

	// parameter names are case-insensitive
	return strings.ToLower(key), str[i+1:], nil
}

func readQuotedValue(origstr string, str string) (string, string, error) {
	var b strings.Builder

	for i := 1; i < len(str); i++ {
		switch str[i] {
		case '\\':
			i++
			if i >= len(str) {
				return "", "", fmt.Errorf("apexes not closed (%v)", origstr)
			}
			b.WriteByte(str[i])

		case '"':
			return b.String(), str[i+1:], nil

		default:
			b.WriteByte(str[i])
		}
	}

	return "", "", fmt.Errorf("apexes not closed (%v)", origstr)
}

func readParamValue(origstr string, str string) (string, string, error) {
	str = skipSpaces(str)

	if len(str) > 0 && str[0] == '"' {
		return readQuotedValue(origstr, str)
	}

	i := strings.IndexByte(str, ',')
	if i < 0 {
		i = len(str)
	}

	return strings.TrimRight(str[:i], " \t"), str[i:], nil
}

// parseAuthParams parses the comma-separated parameters
// of WWW-Authenticate and Authorization headers.
// Keys are lowercased; quoted values can contain escaped characters.
func parseAuthParams(str string) (map[string]string, error) {
	ret := make(map[string]string)
	origstr := str

	for {
		// skip empty elements
		for len(str) > 0 && (isSpace(str[0]) || str[0] == ',') {
			str = str[1:]
		}

		if len(str) == 0 {
			return ret, nil
		}

		var k string
		var err error
		k, str, err = readParamKey(origstr, str)
		if err != nil {
			return nil, err
		}

		var v string
		v, str, err = readParamValue(origstr, str)
		if err != nil {
			return nil, err
		}

		ret[k] = v

		str = skipSpaces(str)
		if len(str) > 0 && str[0] != ',' {
			return nil, fmt.Errorf("unexpected character after value (%v)", origstr)
		}
	}
}
