package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/virelio/accountcore/entity"
	"github.com/virelio/accountcore/pkg/database"
	"github.com/virelio/accountcore/store"
	"github.com/virelio/accountcore/store/storetest"
)

func testAccount(id, email string) *entity.Account {
	return &entity.Account{
		ID:       id,
		Email:    email,
		Password: "hash",
		Name:     "Test",
		Status:   entity.StatusActive,
	}
}

func TestAccountStoreCreateWritesRowAndLog(t *testing.T) {
	g := storetest.NewMemGateway()
	s := store.NewAccountStore(g)
	ctx := context.Background()

	if err := s.Create(ctx, testAccount("a1", "a1@example.com"), `{"name":"Test"}`); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != "a1@example.com" {
		t.Errorf("email = %q, want a1@example.com", got.Email)
	}
	if got.CreateDate == nil {
		t.Error("create date not set")
	}

	logs := g.LogsFor("a1")
	if len(logs) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(logs))
	}
	if logs[0].Action != entity.ActionNewUser {
		t.Errorf("action = %q, want %q", logs[0].Action, entity.ActionNewUser)
	}
	if logs[0].ActionDetail != `{"name":"Test"}` {
		t.Errorf("detail = %q", logs[0].ActionDetail)
	}
}

func TestAccountStoreCreateRollsBackWhenLogInsertFails(t *testing.T) {
	g := storetest.NewMemGateway()
	g.FailOn["INSERT INTO account_modify_log"] = errors.New("log insert refused")
	s := store.NewAccountStore(g)

	err := s.Create(context.Background(), testAccount("a1", "a1@example.com"), "{}")
	if err == nil {
		t.Fatal("Create succeeded, want failure")
	}

	// rollback property: no partial state
	if _, ok := g.AccountRow("a1"); ok {
		t.Error("account row exists after rolled-back create")
	}
	if logs := g.LogsFor("a1"); len(logs) != 0 {
		t.Errorf("got %d audit entries after rollback, want 0", len(logs))
	}
}

func TestAccountStoreCreateDuplicateEmailRollsBack(t *testing.T) {
	g := storetest.NewMemGateway()
	s := store.NewAccountStore(g)
	ctx := context.Background()

	if err := s.Create(ctx, testAccount("a1", "dup@example.com"), "{}"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	err := s.Create(ctx, testAccount("a2", "dup@example.com"), "{}")
	if err == nil {
		t.Fatal("second Create succeeded, want unique violation")
	}
	var se *database.StorageError
	if !errors.As(err, &se) {
		t.Errorf("error %v, want StorageError", err)
	}
	if _, ok := g.AccountRow("a2"); ok {
		t.Error("duplicate account row exists")
	}
}

func TestAccountStoreUpdate(t *testing.T) {
	tests := []struct {
		name     string
		writeLog bool
		wantLogs int
	}{
		{name: "without log", writeLog: false, wantLogs: 1},
		{name: "with log", writeLog: true, wantLogs: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := storetest.NewMemGateway()
			s := store.NewAccountStore(g)
			ctx := context.Background()

			acct := testAccount("a1", "a1@example.com")
			if err := s.Create(ctx, acct, "{}"); err != nil {
				t.Fatalf("Create: %v", err)
			}

			acct.Name = "Renamed"
			acct.LoginFailCount = 3
			if err := s.Update(ctx, acct, tt.writeLog); err != nil {
				t.Fatalf("Update: %v", err)
			}

			got, err := s.GetByID(ctx, "a1")
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if got.Name != "Renamed" || got.LoginFailCount != 3 {
				t.Errorf("row = %q/%d, want Renamed/3", got.Name, got.LoginFailCount)
			}

			logs := g.LogsFor("a1")
			if len(logs) != tt.wantLogs {
				t.Fatalf("got %d audit entries, want %d", len(logs), tt.wantLogs)
			}
			if tt.writeLog && logs[1].Action != entity.ActionUpdateUser {
				t.Errorf("action = %q, want %q", logs[1].Action, entity.ActionUpdateUser)
			}
		})
	}
}

func TestAccountStoreUpdateMissingRowFails(t *testing.T) {
	g := storetest.NewMemGateway()
	s := store.NewAccountStore(g)

	err := s.Update(context.Background(), testAccount("ghost", "g@example.com"), false)
	var pe *store.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("error %v, want PersistenceError", err)
	}
	if pe.Affected != 0 {
		t.Errorf("affected = %d, want 0", pe.Affected)
	}
}

func TestAccountStoreUpdatePasswordAlwaysLogged(t *testing.T) {
	g := storetest.NewMemGateway()
	s := store.NewAccountStore(g)
	ctx := context.Background()

	if err := s.Create(ctx, testAccount("a1", "a1@example.com"), "{}"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.UpdatePassword(ctx, "a1", "newhash"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}

	got, _ := s.GetByID(ctx, "a1")
	if got.Password != "newhash" {
		t.Errorf("password = %q, want newhash", got.Password)
	}
	logs := g.LogsFor("a1")
	if len(logs) != 2 || logs[1].Action != entity.ActionUpdatePassword {
		t.Fatalf("logs = %+v, want trailing %s entry", logs, entity.ActionUpdatePassword)
	}
}

func TestAccountStoreUpdatePasswordRollsBackOnLogFailure(t *testing.T) {
	g := storetest.NewMemGateway()
	s := store.NewAccountStore(g)
	ctx := context.Background()

	if err := s.Create(ctx, testAccount("a1", "a1@example.com"), "{}"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	g.FailOn["INSERT INTO account_modify_log"] = errors.New("log insert refused")

	if err := s.UpdatePassword(ctx, "a1", "newhash"); err == nil {
		t.Fatal("UpdatePassword succeeded, want failure")
	}
	got, _ := s.GetByID(ctx, "a1")
	if got.Password != "hash" {
		t.Errorf("password = %q after rollback, want original hash", got.Password)
	}
}

func TestAccountStoreDeleteCascades(t *testing.T) {
	g := storetest.NewMemGateway()
	s := store.NewAccountStore(g)
	otps := store.NewOTPStore(g)
	ctx := context.Background()

	if err := s.Create(ctx, testAccount("a1", "a1@example.com"), "{}"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := otps.Issue(ctx, "a1", "123456", time.Hour); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := s.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := s.GetByID(ctx, "a1"); err == nil {
		t.Error("account still retrievable after delete")
	}
	if logs := g.LogsFor("a1"); len(logs) != 0 {
		t.Errorf("got %d audit entries after cascade, want 0", len(logs))
	}
	if rows := g.OTPRows("a1"); len(rows) != 0 {
		t.Errorf("got %d otp rows after cascade, want 0", len(rows))
	}
}

func TestAccountStoreDeleteMissingRowFails(t *testing.T) {
	g := storetest.NewMemGateway()
	s := store.NewAccountStore(g)

	err := s.Delete(context.Background(), "ghost")
	var pe *store.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("error %v, want PersistenceError", err)
	}
}

func TestAccountStoreLookupMiss(t *testing.T) {
	g := storetest.NewMemGateway()
	s := store.NewAccountStore(g)
	ctx := context.Background()

	var nf *store.NotFoundError
	if _, err := s.GetByID(ctx, "nope"); !errors.As(err, &nf) {
		t.Errorf("GetByID error %v, want NotFoundError", err)
	}
	if _, err := s.GetByEmail(ctx, "nope@example.com"); !errors.As(err, &nf) {
		t.Errorf("GetByEmail error %v, want NotFoundError", err)
	}
}

// Two verifications that read the same fail count and write back
// independently end with the last write, not the sum. The engine accepts
// this consistency gap on login_fail_count.
func TestAccountStoreFailCountLastWriteWins(t *testing.T) {
	g := storetest.NewMemGateway()
	s := store.NewAccountStore(g)
	ctx := context.Background()

	if err := s.Create(ctx, testAccount("a1", "a1@example.com"), "{}"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, _ := s.GetByID(ctx, "a1")
	second, _ := s.GetByID(ctx, "a1")

	first.LoginFailCount++
	if err := s.Update(ctx, first, false); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	second.LoginFailCount++
	if err := s.Update(ctx, second, false); err != nil {
		t.Fatalf("second Update: %v", err)
	}

	got, _ := s.GetByID(ctx, "a1")
	if got.LoginFailCount != 1 {
		t.Errorf("fail count = %d, want 1 (last write wins)", got.LoginFailCount)
	}
}
