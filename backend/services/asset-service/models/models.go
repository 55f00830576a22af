package models

import "github.com/centralbank/fabric-asset-api/backend/pkg/journal"

// Asset is the request body of asset mutations.
type Asset struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type ExistsResponse struct {
	Exists bool `json:"exists"`
}

type JournalResponse struct {
	Entries []journal.Entry `json:"entries"`
	Count   int             `json:"count"`
}
