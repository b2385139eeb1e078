package handlers

import pkgvalidator "github.com/ghuser/secondchance/pkg/validator"

// InsertAckResponse is returned on successful item creation.
type InsertAckResponse struct {
	Acknowledged bool   `json:"acknowledged" example:"true"`
	InsertedID   string `json:"insertedId"   example:"65a1f0c2e4b0a1b2c3d4e5f6"`
	ID           string `json:"id"           example:"1"`
} // @name InsertAckResponse

// UpdateItemRequest is the request body for PUT /secondchance/items/{id}.
// Any other field in the body is ignored; absent text fields are stored as "".
type UpdateItemRequest struct {
	Category    string              `json:"category"    example:"Furniture"`
	Condition   string              `json:"condition"   example:"Used"`
	Description string              `json:"description" example:"Solid oak, minor scratches"`
	AgeDays     pkgvalidator.Number `json:"age_days"    validate:"required,numeric,gte=0" swaggertype:"number" example:"730"`
} // @name UpdateItemRequest

// UpdateItemResponse reports whether the conditional write matched.
type UpdateItemResponse struct {
	Uploaded string `json:"uploaded" example:"success" enums:"success,failed"`
} // @name UpdateItemResponse

// DeleteItemResponse is returned on successful deletion.
type DeleteItemResponse struct {
	Deleted string `json:"deleted" example:"success"`
} // @name DeleteItemResponse

// ErrorResponse is returned on all error responses.
type ErrorResponse struct {
	Error  string            `json:"error" example:"secondChanceItem not found"`
	Fields map[string]string `json:"fields,omitempty"`
} // @name ErrorResponse

// Item is the open item document as served by the API.
type Item map[string]any // @name Item
