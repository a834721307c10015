package queryx

import "fmt"

// KeyFunc maps an argument to the string under which its Fixed Execution is
// stored in a Cache. Two arguments collide iff KeyFunc produces the same
// string for both; EndpointOptions.KeyFunc is how cache-key equality is
// realized in Go, letting a Cache work over argument
// types that are not `comparable` without reflection-based deep-equal scans.
type KeyFunc[A any] func(arg A) string

// DefaultKeyFunc formats an argument's type and value. It is adequate for
// arguments that are comparable and have a meaningful %v representation
// (strings, integers, small structs of such). Arguments carrying pointers,
// maps, funcs, or large nested structures should supply their own KeyFunc
// via EndpointOptions.
func DefaultKeyFunc[A any](arg A) string {
	return fmt.Sprintf("%T:%v", arg, arg)
}
