package model

import "time"

// Note is a personal text note owned by exactly one account.
//
// UserID is never serialised from client input: handlers take it from the
// authenticated session, so a client cannot write into another account.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
