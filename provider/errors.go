package provider

import (
	"fmt"
	"strings"
)

// UnavailableError reports a provider name with no registration for the
// requested capability. The message enumerates the registered names so a
// misconfigured default is diagnosable from the error alone.
type UnavailableError struct {
	Capability Capability
	Name       string
	Registered []string
}

func (e *UnavailableError) Error() string {
	registered := "none"
	if len(e.Registered) > 0 {
		registered = strings.Join(e.Registered, ", ")
	}
	return fmt.Sprintf("%s provider %q is not available (registered: %s)",
		e.Capability, e.Name, registered)
}

// InitError wraps a failure from a provider's Initialize hook. It propagates
// instead of being swallowed: a misconfigured provider must not serve.
type InitError struct {
	Capability Capability
	Name       string
	Err        error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize %s provider %q: %v", e.Capability, e.Name, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// VendorError wraps a failed call into a vendor SDK or API after the provider
// is initialized. Vendor-specific error types never cross the provider
// boundary; callers see the vendor name and operation instead.
type VendorError struct {
	Vendor string
	Op     string
	Err    error
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Vendor, e.Op, e.Err)
}

func (e *VendorError) Unwrap() error { return e.Err }
