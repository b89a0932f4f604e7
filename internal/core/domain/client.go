package domain

import "time"

// Client is a customer of the brokerage backed by one remote folder. ID is a
// locally generated surrogate; FolderID is the only identity stable across
// sessions.
type Client struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DocumentCount int    `json:"documentCount"`
	FolderID      string `json:"folderId"`
}

// Session is the credential triple needed to talk to the storage service on
// behalf of one user.
type Session struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"-"`
	RootFolderID string    `json:"rootFolderId"`
	UserEmail    string    `json:"userEmail"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Complete reports whether every field required for restoration is present.
func (s Session) Complete() bool {
	return s.AccessToken != "" && s.RootFolderID != "" && s.UserEmail != ""
}
