package common

// APIResponse is the uniform JSON envelope returned by every endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// Business status codes mapped onto HTTP statuses by the response helpers.
const (
	CodeOK             = 0
	CodeInvalidRequest = 40001
	CodeInvalidState   = 40002
	CodeBlocked        = 40003
	CodeUnauthorized   = 40100
	CodeForbidden      = 40300
	CodeNotFound       = 40400
	CodeConflict       = 40900
	CodeInternalError  = 50000
)

// SuccessResponse builds a success envelope.
func SuccessResponse(data any) APIResponse {
	return APIResponse{Success: true, Data: data, Code: CodeOK}
}

// ErrorResponse builds an error envelope.
func ErrorResponse(code int, message string) APIResponse {
	return APIResponse{Success: false, Message: message, Code: code}
}

// PaginationRequest carries page/page_size query parameters.
type PaginationRequest struct {
	Page     int `json:"page" form:"page" binding:"omitempty,min=1"`
	PageSize int `json:"page_size" form:"page_size" binding:"omitempty,min=1"`
}

// DefaultPagination returns the default page window.
func DefaultPagination() PaginationRequest {
	return PaginationRequest{Page: 1, PageSize: 20}
}

// GetPageSize clamps page size to [1,100] with a default of 20.
func (p PaginationRequest) GetPageSize() int {
	if p.PageSize < 1 {
		return 20
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// GetOffset computes the database offset for the window.
func (p PaginationRequest) GetOffset() int {
	page := p.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * p.GetPageSize()
}

// PaginationMeta describes a returned page.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ListResponse wraps a page of items with its pagination metadata.
type ListResponse struct {
	Items      any            `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}
