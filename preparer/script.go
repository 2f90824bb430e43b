package preparer

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/client"
)

// Script executes plain SQL statements on a single connection. It stands in
// for migration tools whose effect is a fixed list of statements.
type Script struct {
	statements []string
	identity   string
}

// NewScript returns a preparer for the given statements.
func NewScript(statements ...string) *Script {
	stmts := append([]string(nil), statements...)
	return &Script{statements: stmts, identity: "script:" + encodeStrings(stmts)}
}

// Prepare implements DatabasePreparer.
func (s *Script) Prepare(ctx context.Context, ds client.DataSource) (err error) {
	conn, err := ds.Connect(ctx)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer func() {
		err = errors.CombineErrors(err, conn.Close())
	}()

	stmt, err := conn.CreateStatement(ctx)
	if err != nil {
		return errors.Wrap(err, "create statement")
	}
	defer func() {
		err = errors.CombineErrors(err, stmt.Close())
	}()

	for i, q := range s.statements {
		if _, err := stmt.ExecuteUpdate(ctx, q); err != nil {
			return errors.Wrapf(err, "script statement %d", i)
		}
	}
	return nil
}

// Identity implements DatabasePreparer.
func (s *Script) Identity() string {
	return s.identity
}

// Statements returns a copy of the script.
func (s *Script) Statements() []string {
	return append([]string(nil), s.statements...)
}
