package httpapi

import "fmt"

func errNotFound(kind, id string) error {
	return fmt.Errorf("%s %q not found", kind, id)
}
