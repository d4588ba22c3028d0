package model

import "encoding/json"

type CouponInput struct {
	Title             string   `json:"title"`
	Code              string   `json:"code"`
	Value             float64  `json:"value"`
	StartsAt          string   `json:"startsAt"`
	EndsAt            string   `json:"endsAt"`
	UsageLimit        *int     `json:"usageLimit,omitempty"`
	PerUserLimit      *int     `json:"perUserLimit,omitempty"`
	MinimumOrderValue *float64 `json:"minimumOrderValue,omitempty"`
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type OrdersQuery struct {
	Page      int       `json:"page"`
	PageSize  int       `json:"pageSize"`
	Status    string    `json:"status,omitempty"`
	Search    string    `json:"search,omitempty"`
	SortBy    string    `json:"sortBy,omitempty"`
	SortOrder SortOrder `json:"sortOrder,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type OrdersPage struct {
	Orders     json.RawMessage `json:"orders"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}
