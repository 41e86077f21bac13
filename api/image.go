package api

import "time"

// ImageSummary is an element of the GET /images response.
type ImageSummary struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// Image is the PUT /images/:id response. Image bytes are served only by the
// view endpoint.
type Image struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type RenameRequest struct {
	Name string `json:"name"`
}

type UploadResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
