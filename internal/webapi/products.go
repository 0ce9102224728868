package webapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/smartcart/internal/catalog"
	"github.com/talkincode/smartcart/internal/webserver"
)

func registerProductRoutes(srv *webserver.Server, h *handlers) {
	srv.ApiGET("/products", h.listProducts)
	srv.ApiGET("/products/export", h.exportProducts, h.admin...)
	srv.ApiGET("/products/rfid/:tag", h.productByTag)
	srv.ApiGET("/products/:id", h.getProduct)
	srv.ApiPOST("/products", h.createProduct, h.admin...)
	srv.ApiPOST("/products/import", h.importProducts, h.admin...)
	srv.ApiPUT("/products/:id", h.updateProduct, h.admin...)
	srv.ApiDELETE("/products/:id", h.deleteProduct, h.admin...)
}

func (h *handlers) listProducts(c echo.Context) error {
	products, err := h.Catalog.List(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return failErr(c, err, "Error reading products")
	}
	return ok(c, products)
}

func (h *handlers) getProduct(c echo.Context) error {
	p, err := h.Catalog.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return failKind(c, err)
	}
	return ok(c, p)
}

func (h *handlers) productByTag(c echo.Context) error {
	p, err := h.Catalog.GetByTag(c.Request().Context(), c.Param("tag"))
	if err != nil {
		return failKind(c, err)
	}
	return ok(c, p)
}

func (h *handlers) createProduct(c echo.Context) error {
	var form catalog.ProductInput
	if err := c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if err := c.Validate(&form); err != nil {
		return failErr(c, err, "Name, price, RFID tag and quantity are required")
	}
	p, err := h.Catalog.Create(c.Request().Context(), form)
	if err != nil {
		return failKind(c, err)
	}
	return created(c, p)
}

func (h *handlers) updateProduct(c echo.Context) error {
	var patch catalog.ProductPatch
	if err := c.Bind(&patch); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if err := c.Validate(&patch); err != nil {
		return failErr(c, err, "Invalid product fields")
	}
	p, err := h.Catalog.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return failKind(c, err)
	}
	return ok(c, p)
}

func (h *handlers) deleteProduct(c echo.Context) error {
	p, err := h.Catalog.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return failKind(c, err)
	}
	return ok(c, map[string]interface{}{"message": "Product deleted successfully", "product": p})
}

func (h *handlers) exportProducts(c echo.Context) error {
	format := strings.ToLower(c.QueryParam("format"))
	if format == "" {
		format = "xlsx"
	}
	var buf bytes.Buffer
	var ctype string
	var err error
	switch format {
	case "xlsx":
		ctype = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = h.Catalog.ExportExcel(c.Request().Context(), &buf)
	case "csv":
		ctype = "text/csv"
		err = h.Catalog.ExportCSV(c.Request().Context(), &buf)
	default:
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unsupported export format", format)
	}
	if err != nil {
		return failErr(c, err, "Export failed")
	}
	filename := fmt.Sprintf("products-%s.%s", time.Now().Format("20060102150405"), format)
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filename)
	return c.Blob(http.StatusOK, ctype, buf.Bytes())
}

func (h *handlers) importProducts(c echo.Context) error {
	body := c.Request().Body
	if file, err := c.FormFile("file"); err == nil {
		src, err := file.Open()
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read upload", err.Error())
		}
		defer src.Close()
		body = src
	}
	res, err := h.Catalog.ImportCSV(c.Request().Context(), body)
	if err != nil {
		return failErr(c, err, "Import failed")
	}
	return ok(c, map[string]interface{}{"success": true, "created": res.Created, "updated": res.Updated})
}
