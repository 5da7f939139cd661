package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCapturesPostgresDetail(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_order_number", TableName: "orders"}
	err := Wrap(CodeOrderNumber, fmt.Errorf("insert order: %w", pgErr), "order number taken")

	d := Dump(err)
	if d.Code != CodeOrderNumber {
		t.Fatalf("expected code %s, got %s", CodeOrderNumber, d.Code)
	}
	if d.Postgres == nil || d.Postgres.Constraint != "ux_orders_order_number" {
		t.Fatalf("expected postgres detail, got %+v", d.Postgres)
	}
	if len(d.Chain) < 3 {
		t.Fatalf("expected full chain, got %v", d.Chain)
	}

	fields := d.Fields()
	if fields["pg_code"] != "23505" || fields["pg_table"] != "orders" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatal("empty postgres values should be left out")
	}
}

func TestDumpFallsBackToLibPQ(t *testing.T) {
	d := Dump(fmt.Errorf("seed: %w", &pq.Error{Code: "23503", Table: "order_items"}))
	if d.Postgres == nil || d.Postgres.Code != "23503" || d.Postgres.Table != "order_items" {
		t.Fatalf("unexpected postgres detail %+v", d.Postgres)
	}
}

func TestDumpWalksJoinedErrors(t *testing.T) {
	err := stdErrors.Join(stdErrors.New("expire ORD-000001"), stdErrors.New("expire ORD-000002"))

	d := Dump(err)
	if len(d.Chain) != 3 {
		t.Fatalf("expected join plus both members, got %v", d.Chain)
	}
	if d.Postgres != nil {
		t.Fatal("plain errors should carry no postgres detail")
	}
	if _, ok := d.Fields()["error_code"]; ok {
		t.Fatal("untyped errors should not log a code")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
