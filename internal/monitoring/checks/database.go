package checks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/database"
	"github.com/charlesng35/workpass/internal/monitoring"
)

// Database probes the primary store. A failure takes the service out of
// rotation.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		return monitoring.ResultFromError(database.Ping(ctx, db), time.Since(start))
	})
}
