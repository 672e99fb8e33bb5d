package siwe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Parse reads a message produced by Message.String.
func Parse(text string) (*Message, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 9 {
		return nil, fmt.Errorf("%w: too short", ErrMalformed)
	}

	m := &Message{}

	header := lines[0]
	if !strings.HasSuffix(header, headerSuffix) {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	m.Domain = strings.TrimSuffix(header, headerSuffix)

	if !common.IsHexAddress(lines[1]) {
		return nil, fmt.Errorf("%w: invalid address %q", ErrMalformed, lines[1])
	}
	m.Address = common.HexToAddress(lines[1])

	if lines[2] != "" {
		return nil, fmt.Errorf("%w: expected blank line after address", ErrMalformed)
	}

	i := 3
	if lines[i] != "" {
		m.Statement = lines[i]
		i++
	}
	if lines[i] != "" {
		return nil, fmt.Errorf("%w: expected blank line after statement", ErrMalformed)
	}
	i++

	required := []struct {
		tag string
		dst *string
	}{
		{uriTag, &m.URI},
		{versionTag, &m.Version},
	}
	for _, field := range required {
		v, ok := tagged(lines, i, field.tag)
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrMalformed, strings.TrimSpace(field.tag))
		}
		*field.dst = v
		i++
	}

	chainID, ok := tagged(lines, i, chainIDTag)
	if !ok {
		return nil, fmt.Errorf("%w: missing chain id", ErrMalformed)
	}
	id, err := strconv.ParseInt(chainID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid chain id %q", ErrMalformed, chainID)
	}
	m.ChainID = id
	i++

	if m.Nonce, ok = tagged(lines, i, nonceTag); !ok {
		return nil, fmt.Errorf("%w: missing nonce", ErrMalformed)
	}
	i++
	if m.IssuedAt, ok = tagged(lines, i, issuedAtTag); !ok {
		return nil, fmt.Errorf("%w: missing issued at", ErrMalformed)
	}
	i++

	if v, ok := tagged(lines, i, expiryTag); ok {
		m.ExpirationTime = v
		i++
	}
	if v, ok := tagged(lines, i, notBeforeTag); ok {
		m.NotBefore = v
		i++
	}
	if v, ok := tagged(lines, i, requestIDTag); ok {
		m.RequestID = v
		i++
	}
	if i < len(lines) && lines[i] == resourcesTag {
		i++
		for ; i < len(lines) && strings.HasPrefix(lines[i], "- "); i++ {
			m.Resources = append(m.Resources, strings.TrimPrefix(lines[i], "- "))
		}
	}
	if i != len(lines) {
		return nil, fmt.Errorf("%w: unexpected content %q", ErrMalformed, lines[i])
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func tagged(lines []string, i int, tag string) (string, bool) {
	if i >= len(lines) || !strings.HasPrefix(lines[i], tag) {
		return "", false
	}
	return strings.TrimPrefix(lines[i], tag), true
}
