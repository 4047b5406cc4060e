package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

// paramID reads a numeric path parameter, answering 400 when it is not one.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, err.Error())
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		response.BadRequest(c, err.Error())
		return false
	}
	return true
}

func paginated[T any](c *gin.Context, page *services.PageResult[T]) {
	response.Paginated(c, page.Total, page.Page, page.PageSize, page.Items)
}

// sendExport renders the table in the format named by ?format= (csv by default).
func sendExport(c *gin.Context, table *services.ExportTable) {
	format := c.DefaultQuery("format", services.ExportCSV)
	if format != services.ExportCSV && format != services.ExportXLSX {
		response.BadRequest(c, "format must be csv or xlsx")
		return
	}
	var buf bytes.Buffer
	if err := table.Write(&buf, format); err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+table.Filename(format)+`"`)
	c.Data(http.StatusOK, table.ContentType(format), buf.Bytes())
}
