// Command acctdemo runs a smoke flow against a live Postgres: schema
// init, registration, credential verification, password change and an OTP
// round trip. It exists to exercise the library end to end; accountcore
// itself has no executable surface.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	accountcore "github.com/virelio/accountcore"
	"github.com/virelio/accountcore/pkg/database"
	"github.com/virelio/accountcore/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mgr := accountcore.NewManager(database.NewGateway(db), sugar)
	if err := mgr.InitSchema(ctx); err != nil {
		sugar.Fatalf("init schema: %v", err)
	}

	email := fmt.Sprintf("smoke+%d@example.com", time.Now().UnixNano())
	id, err := mgr.Register(ctx, accountcore.Registration{
		Name:     "Smoke Test",
		Password: "initial-password",
		Email:    email,
	})
	if err != nil {
		sugar.Fatalf("register: %v", err)
	}

	acct, err := mgr.GetByID(ctx, id)
	if err != nil {
		sugar.Fatalf("get account: %v", err)
	}

	ok, err := mgr.VerifyCredential(ctx, acct, "initial-password")
	if err != nil {
		sugar.Fatalf("verify credential: %v", err)
	}
	sugar.Infow("credential check", "id", id, "matched", ok)

	if err := mgr.ChangePassword(ctx, acct, "rotated-password"); err != nil {
		sugar.Fatalf("change password: %v", err)
	}
	ok, err = mgr.VerifyCredential(ctx, acct, "rotated-password")
	if err != nil {
		sugar.Fatalf("verify rotated credential: %v", err)
	}
	sugar.Infow("rotated credential check", "matched", ok)

	code, err := mgr.IssueOTP(ctx, acct)
	if err != nil {
		sugar.Fatalf("issue otp: %v", err)
	}
	ok, err = mgr.VerifyOTP(ctx, acct, code)
	if err != nil {
		sugar.Fatalf("verify otp: %v", err)
	}
	sugar.Infow("otp check", "matched", ok)

	logs, err := mgr.ModifyLogsBySQL(ctx,
		"SELECT * FROM account_modify_log WHERE account_id = $1 ORDER BY date", id)
	if err != nil {
		sugar.Fatalf("fetch logs: %v", err)
	}
	for _, l := range logs {
		sugar.Infow("audit entry", "action", l.Action, "date", l.Date)
	}

	if err := mgr.Delete(ctx, id); err != nil {
		sugar.Fatalf("delete account: %v", err)
	}
	sugar.Info("smoke flow complete")
}
