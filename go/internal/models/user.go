package models

// User represents a bidder or auction owner
type User struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username,omitempty"`
	IsAdmin  bool   `json:"isAdmin,omitempty"`
}
