// Package accountcore is an embedded account-management engine backed by a
// relational store: identity records, password verification with
// fail-count tracking and automatic freezing, and one-time-password
// issuance and verification, with every compound mutation committed
// atomically together with its audit log entry.
//
// The package has no network surface. Construct a Manager over a
// database.Executor (see pkg/database) and call it in-process:
//
//	db, err := database.Connect(database.ConfigFromEnv())
//	// handle err
//	mgr := accountcore.NewManager(database.NewGateway(db), logger)
//	if err := mgr.InitSchema(ctx); err != nil { ... }
//	id, err := mgr.Register(ctx, accountcore.Registration{
//		Name: "Alice", Password: "secret", Email: "a@example.com",
//	})
//
// Hashing, id generation and the lockout action are pluggable through the
// HashStrategy, IDGenerator and FreezeAction interfaces.
package accountcore
