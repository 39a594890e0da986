// Package cache is the process-local fallback store. It mirrors state whose
// system of record lives in the remote CMS (cart contents, booking scratch,
// bearer tokens) so the user flow keeps working when the CMS is unreachable
// or the visitor is not signed in. Writes are last-write-wins; nothing here
// coordinates across processes.
package cache

import "context"

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Key builders. The cart key carries a v2 suffix from a past format change;
// changing any serialized format again means minting a new suffix, there is
// no in-place migration.

func CartKey(sessionID string) string {
	return "cart:v2:" + sessionID
}

func TokenKey(sessionID string) string {
	return "token:" + sessionID
}

func ChatKey(sessionID string) string {
	return "chat:" + sessionID
}
