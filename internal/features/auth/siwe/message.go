package siwe

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const headerSuffix = " wants you to sign in with your Ethereum account:"

var nonceRe = regexp.MustCompile(`^[a-zA-Z0-9]{8,}$`)

// Message is an EIP-4361 sign-in message. Timestamps keep their original
// text so the rendered message is byte-identical to what the wallet signed.
type Message struct {
	Domain         string   `json:"domain"`
	Address        string   `json:"address"`
	Statement      string   `json:"statement,omitempty"`
	URI            string   `json:"uri"`
	Version        string   `json:"version"`
	ChainID        int64    `json:"chainId"`
	Nonce          string   `json:"nonce"`
	IssuedAt       string   `json:"issuedAt"`
	ExpirationTime string   `json:"expirationTime,omitempty"`
	NotBefore      string   `json:"notBefore,omitempty"`
	RequestID      string   `json:"requestId,omitempty"`
	Resources      []string `json:"resources,omitempty"`

	raw string
}

// Parse accepts the text form of a message or its JSON object form.
func Parse(raw string) (*Message, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var m Message
		if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		if err := m.validate(); err != nil {
			return nil, err
		}
		return &m, nil
	}
	return parseText(raw)
}

func parseText(raw string) (*Message, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) < 4 {
		return nil, invalid("message too short")
	}

	m := &Message{}
	if !strings.HasSuffix(lines[0], headerSuffix) {
		return nil, invalid("missing header")
	}
	m.Domain = strings.TrimSuffix(lines[0], headerSuffix)
	m.Address = lines[1]
	if lines[2] != "" {
		return nil, invalid("expected blank line after address")
	}

	i := 3
	if lines[i] != "" {
		m.Statement = lines[i]
		i++
		if i >= len(lines) || lines[i] != "" {
			return nil, invalid("expected blank line after statement")
		}
	}
	i++

	fields := map[string]*string{
		"URI":             &m.URI,
		"Version":         &m.Version,
		"Nonce":           &m.Nonce,
		"Issued At":       &m.IssuedAt,
		"Expiration Time": &m.ExpirationTime,
		"Not Before":      &m.NotBefore,
		"Request ID":      &m.RequestID,
	}
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" && i == len(lines)-1 {
			break
		}
		if line == "Resources:" {
			for i++; i < len(lines) && strings.HasPrefix(lines[i], "- "); i++ {
				m.Resources = append(m.Resources, strings.TrimPrefix(lines[i], "- "))
			}
			if i < len(lines) && lines[i] != "" {
				return nil, invalid("unexpected line after resources")
			}
			break
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, invalid(fmt.Sprintf("malformed line %q", line))
		}
		if key == "Chain ID" {
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, invalid("chain id is not a number")
			}
			m.ChainID = id
			continue
		}
		dst, known := fields[key]
		if !known {
			return nil, invalid(fmt.Sprintf("unknown field %q", key))
		}
		*dst = value
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	m.raw = raw
	return m, nil
}

func (m *Message) validate() error {
	switch {
	case m.Domain == "":
		return invalid("domain is required")
	case !common.IsHexAddress(m.Address) || !strings.HasPrefix(m.Address, "0x"):
		return invalid("address is not a hex address")
	case !isChecksumOrLower(m.Address):
		return invalid("address checksum mismatch")
	case m.URI == "":
		return invalid("uri is required")
	case m.Version != "1":
		return invalid("unsupported version")
	case m.ChainID <= 0:
		return invalid("chain id is required")
	case !nonceRe.MatchString(m.Nonce):
		return invalid("nonce must be at least 8 alphanumeric characters")
	}
	if _, err := parseTime(m.IssuedAt); err != nil {
		return invalid("issued at is not RFC 3339")
	}
	if m.ExpirationTime != "" {
		if _, err := parseTime(m.ExpirationTime); err != nil {
			return invalid("expiration time is not RFC 3339")
		}
	}
	if m.NotBefore != "" {
		if _, err := parseTime(m.NotBefore); err != nil {
			return invalid("not before is not RFC 3339")
		}
	}
	return nil
}

// String renders the message in the EIP-4361 text form.
func (m *Message) String() string {
	var b strings.Builder
	b.WriteString(m.Domain + headerSuffix + "\n")
	b.WriteString(m.Address + "\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement + "\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "URI: %s\n", m.URI)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "Chain ID: %d\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", m.IssuedAt)
	if m.ExpirationTime != "" {
		fmt.Fprintf(&b, "\nExpiration Time: %s", m.ExpirationTime)
	}
	if m.NotBefore != "" {
		fmt.Fprintf(&b, "\nNot Before: %s", m.NotBefore)
	}
	if m.RequestID != "" {
		fmt.Fprintf(&b, "\nRequest ID: %s", m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range m.Resources {
			b.WriteString("\n- " + r)
		}
	}
	return b.String()
}

// SignedText is the exact text the wallet signed: the original input for
// text messages, the rendered form for JSON ones.
func (m *Message) SignedText() string {
	if m.raw != "" {
		return m.raw
	}
	return m.String()
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func isChecksumOrLower(addr string) bool {
	if addr == strings.ToLower(addr) {
		return true
	}
	return common.HexToAddress(addr).Hex() == addr
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, reason)
}
