//go:build unix

package source

import "golang.org/x/sys/unix"

// canWrite asks the kernel whether the process may write path. This
// accounts for ownership, ACLs and read-only mounts.
func canWrite(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}
