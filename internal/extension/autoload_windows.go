//go:build windows

package extension

import "os"

// ownerSafe is a no-op on Windows: os.FileInfo carries no portable
// owner SID, and ACL-based ownership checks are out of scope here.
func ownerSafe(os.FileInfo) bool {
	return true
}
