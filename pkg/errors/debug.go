package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const maxChainDepth = 16

// PGDetail is the part of a driver error worth logging.
type PGDetail struct {
	Code       string `json:"pg_code,omitempty"`
	Constraint string `json:"pg_constraint,omitempty"`
	Table      string `json:"pg_table,omitempty"`
	Column     string `json:"pg_column,omitempty"`
	Detail     string `json:"pg_detail,omitempty"`
	Message    string `json:"pg_message,omitempty"`
}

// ErrorDump is a log-friendly snapshot of an error and everything it wraps.
type ErrorDump struct {
	TopMessage string    `json:"top_message"`
	Code       Code      `json:"code,omitempty"`
	Chain      []string  `json:"chain,omitempty"`
	Postgres   *PGDetail `json:"postgres,omitempty"`
}

// Dump walks err, including joined errors, and records the first Postgres
// error found from either driver.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Postgres: postgresDetail(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	d.Chain = walkChain(err, nil, 0)
	return d
}

// Fields flattens the dump into logger fields, leaving out empty values.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if pg := d.Postgres; pg != nil {
		for key, value := range map[string]string{
			"pg_code":       pg.Code,
			"pg_constraint": pg.Constraint,
			"pg_table":      pg.Table,
			"pg_column":     pg.Column,
			"pg_detail":     pg.Detail,
			"pg_message":    pg.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}

func walkChain(err error, out []string, depth int) []string {
	for err != nil && depth < maxChainDepth {
		out = append(out, fmt.Sprintf("%T: %v", err, err))
		depth++
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				out = walkChain(inner, out, depth)
			}
			return out
		}
		err = errors.Unwrap(err)
	}
	return out
}

func postgresDetail(err error) *PGDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGDetail{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGDetail{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
