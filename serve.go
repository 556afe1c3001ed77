package treefs

import (
	"fmt"
	"os"

	"github.com/winfsp/cgofuse/fuse"
)

// Serve mounts the filesystem at mountpoint and blocks until it is
// unmounted, returning a non-nil error if the underlying protocol host
// reports failure.
//
// Unless the dispatcher was built with [WithoutDefaultOptions], the given
// argument list is expanded with single-call-at-a-time protocol behavior,
// kernel-enforced permission checks, and the invoking user's numeric
// identity:
//
//	-s -o default_permissions -o uid=<uid> -o gid=<gid>
func (d *Dispatcher) Serve(mountpoint string, args ...string) error {
	argv := append([]string{}, args...)
	if d.defOpts {
		argv = append(argv,
			"-s",
			"-o", "default_permissions",
			"-o", fmt.Sprintf("uid=%d", os.Getuid()),
			"-o", fmt.Sprintf("gid=%d", os.Getgid()),
		)
	}

	host := fuse.NewFileSystemHost(d)
	d.host = host

	d.log.Info().Str("mountpoint", mountpoint).Strs("args", argv).Msg("Mounting filesystem")
	if !host.Mount(mountpoint, argv) {
		return fmt.Errorf("failed to mount filesystem at %s", mountpoint)
	}
	d.log.Info().Str("mountpoint", mountpoint).Msg("Filesystem unmounted")
	return nil
}

// Unmount cleanly unmounts a served filesystem. No-op when nothing is
// mounted.
func (d *Dispatcher) Unmount() error {
	if d.host == nil {
		return nil
	}
	if !d.host.Unmount() {
		return fmt.Errorf("failed to unmount filesystem")
	}
	return nil
}
