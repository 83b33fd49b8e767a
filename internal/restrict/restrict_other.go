//go:build !linux

package restrict

// Destination is a no-op on platforms without landlock; the client
// still works, it just isn't self-confined to the destination
// directory.
func Destination(dest string) error {
	return nil
}
