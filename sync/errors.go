// ABOUTME: Sentinel errors returned by sync runs
// ABOUTME: Callers map these to HTTP status codes and tool results with errors.Is
package sync

import (
	"errors"

	"github.com/harperreed/cellsync/crm"
)

var (
	// ErrUnauthenticated means the request carried no user identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidRequest covers malformed or incomplete sync requests.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnknownCRM means the CRM type is not supported.
	ErrUnknownCRM = errors.New("unknown crm type")
	// ErrCellNotFound means the cell does not exist or is not visible to the caller.
	ErrCellNotFound = errors.New("cell not found")
	// ErrIntegrationMissing means no connection exists for the CRM in this scope.
	ErrIntegrationMissing = errors.New("integration not connected")
	// ErrReauthRequired means the CRM connection must be re-authorized by the user.
	ErrReauthRequired = crm.ErrReauthRequired
	// ErrFetchFailed wraps any failure to read records from the CRM.
	ErrFetchFailed = errors.New("failed to fetch crm contacts")
	// ErrSyncInProgress means another sync holds the cell's lock.
	ErrSyncInProgress = errors.New("sync already in progress")
)
