package token

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/khanghh/appsso/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return db, mock
}

func TestTokenRepositoryCreateAndRevoke(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO `auth_tokens`").WillReturnResult(sqlmock.NewResult(0, 1))
	row := model.Token{UserID: alice.ID, AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.Create(ctx, &row); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row.ID == 0 {
		t.Fatalf("expected snowflake id to be assigned")
	}

	mock.ExpectExec("UPDATE `auth_tokens` SET .*`is_revoked`.*WHERE").WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := repo.RevokeByUser(ctx, alice.ID, model.RevokeReasonLogout)
	if err != nil {
		t.Fatalf("RevokeByUser: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows revoked, got %d", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepositoryFindLive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT \\* FROM `auth_tokens` WHERE").
		WillReturnRows(sqlmock.NewRows([]string{"token_id", "user_id", "refresh_token", "is_revoked"}).
			AddRow(42, alice.ID, "refresh", false))
	row, err := repo.FindLive(ctx, alice.ID)
	if err != nil {
		t.Fatalf("FindLive: %v", err)
	}
	if row == nil || row.ID != 42 || row.RefreshToken != "refresh" {
		t.Fatalf("unexpected row %+v", row)
	}

	mock.ExpectQuery("SELECT \\* FROM `auth_tokens` WHERE").
		WillReturnRows(sqlmock.NewRows([]string{"token_id"}))
	row, err = repo.FindLive(ctx, alice.ID)
	if err != nil || row != nil {
		t.Fatalf("expected no live row, got %+v %v", row, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepositoryRevokeBefore(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectExec("UPDATE `auth_tokens` SET .*`is_revoked`.*WHERE .*token_id < \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := repo.RevokeBefore(context.Background(), alice.ID, 42, model.RevokeReasonSuperseded)
	if err != nil {
		t.Fatalf("RevokeBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row revoked, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
