package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func run(t *testing.T, fn func(c *gin.Context)) (int, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/cases", nil)
	fn(c)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestSuccessEnvelopes(t *testing.T) {
	code, resp := run(t, func(c *gin.Context) { Success(c, gin.H{"case_number": "VESPL/ENQ/2526/001"}) })
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, "VESPL/ENQ/2526/001", resp.Data.(map[string]interface{})["case_number"])

	code, resp = run(t, func(c *gin.Context) { Created(c, gin.H{"id": 1}) })
	assert.Equal(t, http.StatusCreated, code)
	assert.True(t, resp.Success)

	code, resp = run(t, func(c *gin.Context) { Message(c, "logged out") })
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "logged out", resp.Message)
	assert.Nil(t, resp.Data)
}

func TestPaginated(t *testing.T) {
	_, resp := run(t, func(c *gin.Context) { Paginated(c, 42, 2, 20, []string{"a", "b"}) })
	page := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 42, page["total"])
	assert.EqualValues(t, 2, page["page"])
	assert.EqualValues(t, 20, page["page_size"])
	assert.Len(t, page["items"], 2)
}

func TestErrorHelpers(t *testing.T) {
	helpers := map[int]func(*gin.Context, string){
		http.StatusBadRequest:          BadRequest,
		http.StatusUnauthorized:        Unauthorized,
		http.StatusForbidden:           Forbidden,
		http.StatusNotFound:            NotFound,
		http.StatusTooManyRequests:     TooManyRequests,
		http.StatusInternalServerError: ServerError,
	}
	for status, fn := range helpers {
		code, resp := run(t, func(c *gin.Context) { fn(c, "nope") })
		assert.Equal(t, status, code)
		assert.Equal(t, status, resp.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, "nope", resp.Message)
	}
}

func TestError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"app error", NewConflict("case was modified concurrently"), http.StatusConflict, "case was modified concurrently"},
		{"wrapped app error", fmt.Errorf("transition: %w", NewUnprocessable("no approved estimation")), http.StatusUnprocessableEntity, "no approved estimation"},
		{"record not found", fmt.Errorf("load case: %w", gorm.ErrRecordNotFound), http.StatusNotFound, "record not found"},
		{"unexpected", errors.New("dial tcp 10.0.0.5:3306: connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, resp := run(t, func(c *gin.Context) { Error(c, tc.err) })
			assert.Equal(t, tc.status, code)
			assert.Equal(t, tc.message, resp.Message)
			assert.Equal(t, tc.status, StatusOf(tc.err))
		})
	}
}

func TestAppErrorConstructors(t *testing.T) {
	errs := map[*AppError]int{
		NewBadRequest("x"):    http.StatusBadRequest,
		NewUnauthorized("x"):  http.StatusUnauthorized,
		NewForbidden("x"):     http.StatusForbidden,
		NewNotFound("x"):      http.StatusNotFound,
		NewConflict("x"):      http.StatusConflict,
		NewUnprocessable("x"): http.StatusUnprocessableEntity,
		NewServerError("x"):   http.StatusInternalServerError,
	}
	for err, status := range errs {
		assert.Equal(t, status, err.HTTPStatus)
		assert.Equal(t, status, err.Code)
		assert.Equal(t, "x", err.Error())
	}
}
