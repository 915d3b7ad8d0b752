// -----------------------------------------------------------------------
// Metasheet - metadata attached to a data object under management
// -----------------------------------------------------------------------

package models

import (
	"strings"
	"time"

	"github.com/ternarybob/lwfm/internal/common"
)

// Framework-reserved metasheet property keys. Clients may extend props but
// must not rewrite reserved keys.
const (
	PropDirection   = "_direction" // "put" or "get"
	PropWorkflowID  = "_workflowId"
	PropJobID       = "_jobId"
	PropSiteName    = "_siteName"
	PropLocalPath   = "_localPath"
	PropSiteObjPath = "_siteObjPath"
)

// Data direction values for PropDirection.
const (
	DirectionPut = "put"
	DirectionGet = "get"
)

// Metasheet records metadata for a data object (a file-like blob) together
// with the job that put or got it.
type Metasheet struct {
	SheetID   string            `json:"sheet_id"`
	JobID     string            `json:"job_id"`
	SiteName  string            `json:"site_name,omitempty"`
	LocalURL  string            `json:"local_url,omitempty"`
	SiteURL   string            `json:"site_url,omitempty"`
	Props     map[string]string `json:"props"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMetasheet creates a metasheet attributed to the given job. The caller's
// props are copied so later framework additions never alias caller state.
func NewMetasheet(jobID, localURL, siteURL string, props map[string]string) *Metasheet {
	copied := make(map[string]string, len(props))
	for k, v := range props {
		copied[k] = v
	}
	return &Metasheet{
		SheetID:   common.NewID(),
		JobID:     jobID,
		LocalURL:  localURL,
		SiteURL:   siteURL,
		Props:     copied,
		CreatedAt: time.Now().UTC(),
	}
}

// IsReservedProp reports whether the key is framework-controlled.
func IsReservedProp(key string) bool {
	return strings.HasPrefix(key, "_")
}

// SetReserved writes a framework-controlled prop.
func (m *Metasheet) SetReserved(key, value string) {
	if m.Props == nil {
		m.Props = make(map[string]string)
	}
	m.Props[key] = value
}

// WorkflowID returns the tagged workflow id, if any.
func (m *Metasheet) WorkflowID() string {
	return m.Props[PropWorkflowID]
}
