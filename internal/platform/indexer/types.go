package indexer

import (
	"encoding/json"
	"strings"
)

// Wallet is one chain's view of an address.
type Wallet struct {
	Chain   string
	Address string
	ENSName string
	NFTs    []NFT
}

type Media struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

type Collection struct {
	Address     string
	Name        string
	Description string
	ImageURL    string
}

// Metadata holds the token metadata fields the app uses.
type Metadata struct {
	Image           string
	Name            string
	Description     string
	BackgroundColor string
}

type NFT struct {
	TokenID         string
	ContractAddress string
	Name            string
	Description     string
	Metadata        Metadata
	Collection      Collection
	UploadURL       string
}

type walletNode struct {
	Address    string  `json:"address"`
	ENSName    *string `json:"ensName"`
	WalletNFTs struct {
		Edges []struct {
			Node struct {
				NFT nftNode `json:"nft"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"walletNFTs"`
}

type nftNode struct {
	TokenID         json.RawMessage `json:"tokenId"`
	ContractAddress string          `json:"contractAddress"`
	Name            *string         `json:"name"`
	Description     *string         `json:"description"`
	Metadata        json.RawMessage `json:"metadata"`
	Collection      *struct {
		Address     string  `json:"address"`
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Image       *Media  `json:"image"`
	} `json:"collection"`
	Uploads []Media `json:"uploads"`
}

func (n nftNode) toNFT() NFT {
	out := NFT{
		TokenID:         rawString(n.TokenID),
		ContractAddress: n.ContractAddress,
		Name:            deref(n.Name),
		Description:     deref(n.Description),
		Metadata:        parseMetadata(n.Metadata),
	}
	if n.Collection != nil {
		out.Collection = Collection{
			Address:     n.Collection.Address,
			Name:        deref(n.Collection.Name),
			Description: deref(n.Collection.Description),
		}
		if n.Collection.Image != nil {
			out.Collection.ImageURL = n.Collection.Image.URL
		}
		// Ethereum responses omit contractAddress on the NFT itself.
		if out.ContractAddress == "" {
			out.ContractAddress = n.Collection.Address
		}
	}
	for _, u := range n.Uploads {
		if u.URL != "" && strings.HasPrefix(u.MimeType, "image/") {
			out.UploadURL = u.URL
			break
		}
	}
	return out
}

// parseMetadata accepts an object, a JSON-encoded string of an object, or null.
func parseMetadata(raw json.RawMessage) Metadata {
	if len(raw) == 0 || string(raw) == "null" {
		return Metadata{}
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Metadata{}
	}
	str := func(k string) string {
		if v, ok := fields[k].(string); ok {
			return v
		}
		return ""
	}
	return Metadata{
		Image:           str("image"),
		Name:            str("name"),
		Description:     str("description"),
		BackgroundColor: str("background_color"),
	}
}

// rawString reads token ids the API sends as either strings or numbers.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
