package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/lwfm/internal/models"
)

// ErrJobNotFound is the distinguished condition a site's GetStatus raises
// for a job the site no longer knows. Some sites purge completed jobs; the
// core treats this as terminal.
var ErrJobNotFound = errors.New("job not found on site")

// SiteAuth is the authentication pillar of a site driver.
type SiteAuth interface {
	Login(ctx context.Context) error
	IsAuthCurrent(ctx context.Context) (bool, error)
}

// SiteRun is the job execution pillar of a site driver.
type SiteRun interface {
	// Submit dispatches the definition under the given context. The driver
	// owns emitting PENDING/RUNNING/terminal statuses for the job.
	Submit(ctx context.Context, defn *models.JobDefn, jobCtx *models.JobContext, computeType string, runArgs []string) (*models.JobStatus, error)
	// GetStatus returns the site's current canonical status for a native
	// job id, or ErrJobNotFound.
	GetStatus(ctx context.Context, nativeID string) (models.Status, error)
	// Cancel asks the site to stop a job; sites may refuse.
	Cancel(ctx context.Context, nativeID string) (bool, error)
}

// SiteRepo is the data management pillar of a site driver.
type SiteRepo interface {
	Put(ctx context.Context, localPath, siteObjPath string, jobCtx *models.JobContext, props map[string]string) (*models.Metasheet, error)
	Get(ctx context.Context, siteObjPath, localPath string, jobCtx *models.JobContext) (string, error)
	Find(ctx context.Context, query map[string]string) ([]*models.Metasheet, error)
}

// SiteSpin is the resource provisioning pillar of a site driver.
type SiteSpin interface {
	ListComputeTypes(ctx context.Context) ([]string, error)
}

// SiteDriver aggregates the four pillars of one configured site.
type SiteDriver interface {
	Name() string
	Auth() SiteAuth
	Run() SiteRun
	Repo() SiteRepo
	Spin() SiteSpin
}

// Runtime is the slice of the middleware façade that site drivers and the
// event processor call back into. Keyed lookups only; no pointer graphs.
type Runtime interface {
	// EmitStatus records a status observation and returns the persisted
	// record, so callers hold the same statusId the store does.
	EmitStatus(jobCtx *models.JobContext, status models.Status, nativeStatus, nativeInfo string) (*models.JobStatus, error)
	NotatePut(jobCtx *models.JobContext, localPath, siteObjPath string, props map[string]string) *models.Metasheet
	NotateGet(jobCtx *models.JobContext, localPath, siteObjPath string, props map[string]string) *models.Metasheet
	Find(query map[string]string) []*models.Metasheet
}
