package interfaces

import (
	"context"

	"stock-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// IDataExchanger defines the push side of the server: whoever refreshes market
// data hands snapshots to it and it fans them out to connected clients.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// Broadcast stores the snapshot as the latest state and pushes it to listeners.
	Broadcast(snapshot *models.MMarketSnapshot)

	// Start the server
	Start() error

	// Stop the server gracefully
	Stop(ctx context.Context) error
}
