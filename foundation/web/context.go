package web

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// Context carries the request scoped values across the application layers.
// It embeds the gin context for direct access to the request and response
// while exposing Ctx for passing into repositories and services.
type Context struct {
	*gin.Context
	Ctx context.Context

	queryErrs []error
	paramErrs []error
}

// NewContext wraps a gin context for use by application handlers.
func NewContext(c *gin.Context) *Context {
	return &Context{
		Context: c,
		Ctx:     c.Request.Context(),
	}
}

// BindFunc binds the request body into dst and checks that the named fields
// are present. Field names may be passed individually or comma separated.
func (c *Context) BindFunc(dst interface{}, fields ...string) error {
	if err := c.ShouldBind(dst); err != nil {
		return NewRequestError(errors.Wrap(err, "binding request"), http.StatusBadRequest)
	}

	v := reflect.ValueOf(dst)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	for _, field := range fields {
		for _, name := range strings.Split(field, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			f := v.FieldByName(name)
			if !f.IsValid() || f.IsZero() {
				return NewRequestError(fmt.Errorf("required field: %s", name), http.StatusBadRequest)
			}
		}
	}

	return nil
}

// GetQueryFunc reads an optional query parameter and converts it to the
// requested kind. It returns a typed pointer or nil when the parameter is
// absent. Conversion errors are collected and reported by ValidQuery.
func (c *Context) GetQueryFunc(kind reflect.Kind, name string) interface{} {
	value, ok := c.GetQuery(name)
	if !ok || value == "" {
		return nil
	}

	switch kind {
	case reflect.Int:
		number, err := strconv.Atoi(value)
		if err != nil {
			c.queryErrs = append(c.queryErrs, fmt.Errorf("query %q must be an integer", name))
			return nil
		}
		return &number
	case reflect.Bool:
		flag, err := strconv.ParseBool(value)
		if err != nil {
			c.queryErrs = append(c.queryErrs, fmt.Errorf("query %q must be a boolean", name))
			return nil
		}
		return &flag
	case reflect.String:
		return &value
	default:
		c.queryErrs = append(c.queryErrs, fmt.Errorf("unsupported query kind for %q", name))
		return nil
	}
}

// ValidQuery reports the first query conversion error collected by
// GetQueryFunc.
func (c *Context) ValidQuery() error {
	if len(c.queryErrs) > 0 {
		return NewRequestError(c.queryErrs[0], http.StatusBadRequest)
	}
	return nil
}

// GetParam reads a path parameter and converts it to the requested kind.
// Conversion errors are collected and reported by ValidParam.
func (c *Context) GetParam(kind reflect.Kind, name string) interface{} {
	value := c.Param(name)

	switch kind {
	case reflect.Int:
		number, err := strconv.Atoi(value)
		if err != nil {
			c.paramErrs = append(c.paramErrs, fmt.Errorf("param %q must be an integer", name))
			return 0
		}
		return number
	default:
		return value
	}
}

// ValidParam reports the first param conversion error collected by GetParam.
func (c *Context) ValidParam() error {
	if len(c.paramErrs) > 0 {
		return NewRequestError(c.paramErrs[0], http.StatusBadRequest)
	}
	return nil
}

// Respond converts a Go value to JSON and sends it to the client.
func (c *Context) Respond(data interface{}, status int) error {
	c.JSON(status, data)
	return nil
}

// RespondError sends an error response to the client. Expected request
// errors keep their status and message, anything else is masked as an
// internal error.
func (c *Context) RespondError(err error) error {
	if webErr := GetRequestError(err); webErr != nil {
		response := map[string]interface{}{
			"error":  webErr.Error(),
			"status": false,
		}
		if len(webErr.Fields) > 0 {
			response["fields"] = webErr.Fields
		}
		c.JSON(webErr.Status, response)
		return nil
	}

	c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error":  http.StatusText(http.StatusInternalServerError),
		"status": false,
	})
	return err
}
