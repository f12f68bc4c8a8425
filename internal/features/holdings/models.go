package holdings

// Holding is one NFT a wallet holds, flattened across chains.
type Holding struct {
	Chain            string     `json:"chain"`
	ContractAddress  string     `json:"contract_address"`
	TokenID          string     `json:"token_id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	ImageURL         string     `json:"image_url"`
	ImageAltText     string     `json:"image_alt_text"`
	ImageDescription string     `json:"image_description"`
	Collection       Collection `json:"collection"`
}

type Collection struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	BrandColor  string `json:"brand_color"`
}
