package reusesocketd

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

func userLookup(name string) (int, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(u.Uid)
}

func groupLookup(name string) (int, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(g.Gid)
}

// ParseUserGroup splits a "user:group" identifier string into numeric
// uid/gid, resolving names via the system's user/group database. Spec §6,
// §9.
func ParseUserGroup(idString string) (uid, gid int, err error) {
	parts := strings.SplitN(idString, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("reusesocketd: invalid user:group string %q", idString)
	}

	uid, err = lookupUID(parts[0])
	if err != nil {
		return 0, 0, err
	}
	gid, err = lookupGID(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}

// DropPrivilege clears supplementary groups and sets gid then uid, enforcing
// that only the real superuser may do so (spec §6, §9). It always resets
// the umask to 0077 first, independent of the endpoint's umask mode,
// matching the Python original's unconditional os.umask(0o077) inside
// drop_privilege (SPEC_FULL.md item 4).
func DropPrivilege(idString string) error {
	unix.Umask(0077)
	if idString == "" {
		return nil
	}
	if unix.Getuid() != 0 {
		return fmt.Errorf("reusesocketd: cannot drop privilege: process is not running as root")
	}

	uid, gid, err := ParseUserGroup(idString)
	if err != nil {
		return err
	}
	if err := unix.Setgroups(nil); err != nil {
		return fmt.Errorf("clearing supplementary groups: %w", err)
	}
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("setgid(%d): %w", gid, err)
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("setuid(%d): %w", uid, err)
	}
	return nil
}

func lookupUID(name string) (int, error) {
	if u, err := strconv.Atoi(name); err == nil {
		return u, nil
	}
	u, err := userLookup(name)
	if err != nil {
		return 0, fmt.Errorf("looking up user %q: %w", name, err)
	}
	return u, nil
}

func lookupGID(name string) (int, error) {
	if g, err := strconv.Atoi(name); err == nil {
		return g, nil
	}
	g, err := groupLookup(name)
	if err != nil {
		return 0, fmt.Errorf("looking up group %q: %w", name, err)
	}
	return g, nil
}
