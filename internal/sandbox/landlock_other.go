//go:build !linux

package sandbox

// Available is false outside Linux
func Available() bool {
	return false
}

// RunHelper is unsupported outside Linux
func RunHelper(args []string) error {
	if _, _, _, err := helperArgs(args); err != nil {
		return err
	}
	return ErrUnsupported
}
