// Package models defines the data types shared between ClipHub's storage,
// service and HTTP layers.
package models

import "time"

// Clip is a single stored text snippet.
type Clip struct {
	ID        int64     `json:"id" example:"42"`
	Content   string    `json:"content" example:"hello world"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClipRef identifies a clip that no longer has content, such as the subject
// of a delete event.
type ClipRef struct {
	ID int64 `json:"id" example:"42"`
}
