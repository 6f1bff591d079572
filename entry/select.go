package entry

import (
	"context"
	"fmt"

	"github.com/risor-io/scripting/loader"
)

// SelectUnit picks the unit to invoke.
//
// When designated is not empty, that unit is resolved through ns and must
// declare a main entry. Otherwise units are scanned in order twice: first for
// a public unit declaring a main entry, then for a non-public one. If neither
// scan matches, the first unit is returned with ok set to false, meaning it
// should not be invoked. With no units at all the result is nil.
//
// Selection reads compiled code only. No unit is initialized.
func SelectUnit(ctx context.Context, ns *loader.Namespace, units []*loader.Unit, designated string) (unit *loader.Unit, ok bool, err error) {
	if designated != "" {
		u, err := ns.Resolve(ctx, designated)
		if err != nil {
			return nil, false, err
		}
		if !HasMain(u) {
			return u, false, fmt.Errorf("%w: %s.%s", ErrNoEntry, u.Name(), MainName)
		}
		return u, true, nil
	}
	for _, public := range []bool{true, false} {
		for _, u := range units {
			if u.Exported() == public && HasMain(u) {
				return u, true, nil
			}
		}
	}
	if len(units) == 0 {
		return nil, false, nil
	}
	return units[0], false, nil
}
