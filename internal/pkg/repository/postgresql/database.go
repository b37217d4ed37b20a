package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"presence/backend/foundation/web"
	"presence/backend/internal/auth"
)

// Database wraps the bun connection together with request validation and the
// claim helpers every repository needs.
type Database struct {
	*bun.DB
	validate *validator.Validate
}

func NewDatabase(username, password, host, port, name string, disableTLS bool) *Database {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", username, password, host, port, name)

	options := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if disableTLS {
		options = append(options, pgdriver.WithInsecure(true))
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(options...))
	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))

	return &Database{
		DB:       db,
		validate: validator.New(),
	}
}

// CheckClaims pulls the authenticated claims out of the request context and
// optionally enforces a role.
func (d Database) CheckClaims(ctx context.Context, roles ...string) (auth.Claims, error) {
	claims, err := auth.GetClaims(ctx)
	if err != nil {
		return auth.Claims{}, err
	}
	if len(roles) > 0 && !claims.Authorized(roles...) {
		return auth.Claims{}, web.NewRequestError(errors.New("attempted action is not allowed"), http.StatusUnauthorized)
	}
	return claims, nil
}

// ValidateStruct checks that the named fields are set and then runs the
// struct's validate tags. Field names may be passed comma separated.
func (d Database) ValidateStruct(s interface{}, requiredFields ...string) error {
	structVal := reflect.ValueOf(s)
	for structVal.Kind() == reflect.Ptr {
		structVal = structVal.Elem()
	}

	var fields []web.FieldError
	for _, required := range requiredFields {
		for _, name := range strings.Split(required, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			f := structVal.FieldByName(name)
			if !f.IsValid() || f.IsZero() {
				fields = append(fields, web.FieldError{Field: name, Error: "required"})
			}
		}
	}
	if len(fields) > 0 {
		err := &web.Error{
			Err:    errors.New("missing required fields"),
			Status: http.StatusBadRequest,
			Fields: fields,
		}
		return err
	}

	if err := d.validate.Struct(s); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			for _, vErr := range vErrs {
				fields = append(fields, web.FieldError{Field: vErr.Field(), Error: vErr.Tag()})
			}
			return &web.Error{
				Err:    errors.New("validation failed"),
				Status: http.StatusBadRequest,
				Fields: fields,
			}
		}
		return web.NewRequestError(errors.Wrap(err, "validating struct"), http.StatusBadRequest)
	}

	return nil
}

// DeleteRow soft deletes a row, stamping who removed it.
func (d Database) DeleteRow(ctx context.Context, table string, id int) error {
	claims, err := d.CheckClaims(ctx)
	if err != nil {
		return err
	}

	q := d.NewUpdate().Table(table).Where("deleted_at IS NULL AND id = ?", id)
	q.Set("deleted_at = ?", time.Now())
	q.Set("deleted_by = ?", claims.UserId)

	result, err := q.Exec(ctx)
	if err != nil {
		return web.NewRequestError(errors.Wrapf(err, "deleting from %s", table), http.StatusInternalServerError)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return web.NewRequestError(errors.Wrap(err, "checking delete result"), http.StatusInternalServerError)
	}
	if affected == 0 {
		return web.NewRequestError(errors.New("row not found"), http.StatusNotFound)
	}

	return nil
}
