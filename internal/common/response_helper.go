package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResponseSuccess returns a 200 success envelope.
func ResponseSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse(data))
}

// ResponseCreated returns a 201 success envelope.
func ResponseCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, SuccessResponse(data))
}

// ResponseList returns a paginated list envelope.
func ResponseList(c *gin.Context, items any, total int64, req *PaginationRequest) {
	if req == nil {
		defaultReq := DefaultPagination()
		req = &defaultReq
	}

	pageSize := req.GetPageSize()
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	c.JSON(http.StatusOK, SuccessResponse(ListResponse{
		Items: items,
		Pagination: PaginationMeta{
			Page:       req.Page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	}))
}

// ResponseError maps a core error onto its HTTP status and business code.
// Unrecognized errors become 500s without leaking internals beyond the message.
func ResponseError(c *gin.Context, err error) {
	var (
		validationErr   *ValidationError
		invalidStateErr *InvalidStateError
		conflictErr     *ConflictError
		blockedErr      *BlockedError
		notFoundErr     *NotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse(CodeInvalidRequest, validationErr.Error()))
	case errors.As(err, &invalidStateErr):
		c.JSON(http.StatusConflict, ErrorResponse(CodeInvalidState, invalidStateErr.Error()))
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, ErrorResponse(CodeConflict, conflictErr.Error()))
	case errors.As(err, &blockedErr):
		resp := ErrorResponse(CodeBlocked, blockedErr.Message)
		resp.Data = gin.H{"blocking_ids": blockedErr.BlockingIDs}
		c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, ErrorResponse(CodeNotFound, notFoundErr.Error()))
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse(CodeInternalError, err.Error()))
	}
}

// ResponseBadRequest returns a 400 for malformed request bodies.
func ResponseBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse(CodeInvalidRequest, message))
}

// ResponseUnauthorized returns a 401.
func ResponseUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "authentication required"
	}
	c.JSON(http.StatusUnauthorized, ErrorResponse(CodeUnauthorized, message))
}
