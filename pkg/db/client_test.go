package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

type uniqueModel struct {
	ID   int
	Code string `gorm:"uniqueIndex:ux_unique_models_code"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dbclient_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}, &uniqueModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := Wrap(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&uniqueModel{Code: "ORD-000001"}).Error; err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	err := db.Create(&uniqueModel{Code: "ORD-000001"}).Error
	if err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if !IsUniqueViolation(err, "unique_models.code") {
		t.Fatalf("expected column match on sqlite message, got %v", err)
	}
	if IsUniqueViolation(err, "orders.order_number") {
		t.Fatalf("unexpected match on unrelated constraint")
	}
}

func TestIsUniqueViolation_Negative(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is not a violation")
	}
	if IsUniqueViolation(errors.New("connection reset"), "") {
		t.Fatal("unrelated errors are not violations")
	}
	if !IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "ux_orders_order_number"`), "ux_orders_order_number") {
		t.Fatal("expected postgres message to match")
	}
}
