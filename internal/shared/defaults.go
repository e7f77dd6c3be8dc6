package shared

import _ "embed"

// DefaultListings is served when neither the sheet nor the cache has listings.
//
//go:embed defaults/listings.json
var DefaultListings []byte
