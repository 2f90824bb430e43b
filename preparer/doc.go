// Package preparer defines how a database is brought into the state a test
// expects, and the identities used to tell setups apart.
package preparer
