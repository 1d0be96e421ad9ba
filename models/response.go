package models

import (
	"encoding/json"
	"math"
)

type QueryResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Data        any    `json:"data"`
	Total       *int   `json:"total,omitempty"`
	CurrentPage *int   `json:"currentPage,omitempty"`
	PageSize    *int   `json:"pageSize,omitempty"`
	TotalPages  *int   `json:"totalPages,omitempty"`
}

// MutationResult is the payload of a write followed by a returnQuery.
type MutationResult struct {
	OperationResult   any    `json:"operationResult"`
	ReturnQueryResult any    `json:"returnQueryResult"`
	Total             *int   `json:"total,omitempty"`
	QueryError        string `json:"queryError,omitempty"`
}

func Ok(data any, message string) *QueryResponse {
	return &QueryResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func OkWithTotal(data any, message string, total int) *QueryResponse {
	resp := Ok(data, message)
	resp.Total = &total
	return resp
}

func OkPaged(data any, message string, total int, page PageInfo) *QueryResponse {
	resp := OkWithTotal(data, message, total)

	totalPages := int(math.Ceil(float64(total) / float64(page.Size)))
	resp.CurrentPage = &page.Index
	resp.PageSize = &page.Size
	resp.TotalPages = &totalPages

	return resp
}

func Fail(message string) *QueryResponse {
	return &QueryResponse{
		Success: false,
		Message: message,
	}
}

// DecodeRowsResponse restores a cached read response. Read responses always
// carry a row list as data.
func DecodeRowsResponse(body []byte) (*QueryResponse, error) {
	var cached struct {
		QueryResponse
		Data []Row `json:"data"`
	}

	if err := json.Unmarshal(body, &cached); err != nil {
		return nil, err
	}

	resp := cached.QueryResponse
	if cached.Data == nil {
		cached.Data = []Row{}
	}
	resp.Data = cached.Data

	return &resp, nil
}
