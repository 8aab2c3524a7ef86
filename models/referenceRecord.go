package models

// ReferenceRecord is a catalog entity (category, brand, collection) as the
// dashboard sees it: repository-issued identity plus the commerce-side link.
// StableId is issued once by the repository and never changes; NumericId is
// the repository-local handle and may change across migrations. When
// RemoteId is set, a commerce record exists whose slug equals StableId.
type ReferenceRecord struct {
	StableId    string `json:"stableId"`
	NumericId   int    `json:"numericId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	RemoteId    *int   `json:"remoteId,omitempty"`
	RemoteSlug  string `json:"remoteSlug,omitempty"`
}
