package models

// Security identifies a listed instrument. Immutable once created;
// transactions and parcels reference it, never own it.
type Security struct {
	ID        int64  `json:"id"`
	Ticker    string `json:"ticker"`
	Name      string `json:"name,omitempty"`
	Exchange  string `json:"exchange"`
	Currency  string `json:"currency"`
	AssetType string `json:"asset_type"`
}
