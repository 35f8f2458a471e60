// Package ops contains error types shared by the components that talk to
// external services.
package ops

import "github.com/mbland/mailmerge/types"

// ErrExternal indicates that a request to an upstream service failed because
// of a fault on the service's side. Retrying the same request may succeed.
const ErrExternal = types.SentinelError("external error")
