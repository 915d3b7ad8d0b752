// -----------------------------------------------------------------------
// Site bridge - uniform driver invocation, in-process or isolated
// -----------------------------------------------------------------------

package sites

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/models"
)

// ResultMarker separates the serialized return value from incidental
// stdout produced by an isolated driver, so callee logging and the return
// payload share one stream.
const ResultMarker = "RESULT_MARKER: "

// Bridge invokes site-driver pillar methods uniformly. Sites configured
// with a venv path run out-of-process in their own dependency closure;
// everything else is a direct driver call.
type Bridge struct {
	registry *Registry
	logger   arbor.ILogger
}

// NewBridge creates a bridge over the site registry.
func NewBridge(registry *Registry, logger arbor.ILogger) *Bridge {
	return &Bridge{registry: registry, logger: logger}
}

// Registry exposes the underlying site registry.
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// isolated reports whether the site requires subprocess invocation and
// returns its interpreter path.
func (b *Bridge) isolated(siteName string) (string, bool) {
	cfg, err := b.registry.Config(siteName)
	if err != nil || cfg.Venv == "" {
		return "", false
	}
	return cfg.Venv, true
}

// Submit dispatches a job definition to the site's run pillar.
func (b *Bridge) Submit(ctx context.Context, siteName string, defn *models.JobDefn, jobCtx *models.JobContext, computeType string, runArgs []string) (*models.JobStatus, error) {
	if venv, ok := b.isolated(siteName); ok {
		serDefn, err := models.Serialize(defn)
		if err != nil {
			return nil, err
		}
		serCtx, err := models.Serialize(jobCtx)
		if err != nil {
			return nil, err
		}
		out, err := b.invokeIsolated(ctx, venv, siteName, "run.submit",
			append([]string{serDefn, serCtx, computeType}, runArgs...))
		if err != nil {
			return nil, err
		}
		return models.Deserialize[models.JobStatus](out)
	}

	driver, err := b.registry.Driver(siteName)
	if err != nil {
		return nil, err
	}
	return driver.Run().Submit(ctx, defn, jobCtx, computeType, runArgs)
}

// GetStatus asks the site's run pillar for the canonical status of a
// native job id. Isolated sites signal the not-found condition with a
// distinguished result string.
func (b *Bridge) GetStatus(ctx context.Context, siteName, nativeID string) (models.Status, error) {
	if venv, ok := b.isolated(siteName); ok {
		out, err := b.invokeIsolated(ctx, venv, siteName, "run.getStatus", []string{nativeID})
		if err != nil {
			return models.StatusUnknown, err
		}
		if out == "NOT_FOUND" {
			return models.StatusUnknown, interfaces.ErrJobNotFound
		}
		return models.ParseStatus(out), nil
	}

	driver, err := b.registry.Driver(siteName)
	if err != nil {
		return models.StatusUnknown, err
	}
	return driver.Run().GetStatus(ctx, nativeID)
}

// Cancel asks the site's run pillar to stop a job.
func (b *Bridge) Cancel(ctx context.Context, siteName, nativeID string) (bool, error) {
	if venv, ok := b.isolated(siteName); ok {
		out, err := b.invokeIsolated(ctx, venv, siteName, "run.cancel", []string{nativeID})
		if err != nil {
			return false, err
		}
		return out == "true", nil
	}

	driver, err := b.registry.Driver(siteName)
	if err != nil {
		return false, err
	}
	return driver.Run().Cancel(ctx, nativeID)
}

// Put stores a data object through the site's repo pillar.
func (b *Bridge) Put(ctx context.Context, siteName, localPath, siteObjPath string, jobCtx *models.JobContext, props map[string]string) (*models.Metasheet, error) {
	if venv, ok := b.isolated(siteName); ok {
		serCtx, err := models.Serialize(jobCtx)
		if err != nil {
			return nil, err
		}
		serProps, err := models.Serialize(props)
		if err != nil {
			return nil, err
		}
		out, err := b.invokeIsolated(ctx, venv, siteName, "repo.put",
			[]string{localPath, siteObjPath, serCtx, serProps})
		if err != nil {
			return nil, err
		}
		return models.Deserialize[models.Metasheet](out)
	}

	driver, err := b.registry.Driver(siteName)
	if err != nil {
		return nil, err
	}
	return driver.Repo().Put(ctx, localPath, siteObjPath, jobCtx, props)
}

// Get fetches a data object through the site's repo pillar, returning the
// local path written.
func (b *Bridge) Get(ctx context.Context, siteName, siteObjPath, localPath string, jobCtx *models.JobContext) (string, error) {
	if venv, ok := b.isolated(siteName); ok {
		serCtx, err := models.Serialize(jobCtx)
		if err != nil {
			return "", err
		}
		return b.invokeIsolated(ctx, venv, siteName, "repo.get", []string{siteObjPath, localPath, serCtx})
	}

	driver, err := b.registry.Driver(siteName)
	if err != nil {
		return "", err
	}
	return driver.Repo().Get(ctx, siteObjPath, localPath, jobCtx)
}

// InvokeEndpoint invokes an arbitrary pillar.method endpoint with string
// arguments, returning the serialized result. Used by the façade's site
// endpoint execution path.
func (b *Bridge) InvokeEndpoint(ctx context.Context, siteName, endpoint string, args []string) (string, error) {
	if venv, ok := b.isolated(siteName); ok {
		return b.invokeIsolated(ctx, venv, siteName, endpoint, args)
	}

	driver, err := b.registry.Driver(siteName)
	if err != nil {
		return "", err
	}

	switch endpoint {
	case "auth.login":
		return "", driver.Auth().Login(ctx)
	case "auth.isAuthCurrent":
		current, err := driver.Auth().IsAuthCurrent(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%t", current), nil
	case "run.getStatus":
		if len(args) < 1 {
			return "", fmt.Errorf("run.getStatus requires a job id")
		}
		status, err := driver.Run().GetStatus(ctx, args[0])
		if err != nil {
			return "", err
		}
		return string(status), nil
	case "run.cancel":
		if len(args) < 1 {
			return "", fmt.Errorf("run.cancel requires a job id")
		}
		ok, err := driver.Run().Cancel(ctx, args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%t", ok), nil
	case "repo.find":
		if len(args) < 1 {
			return "", fmt.Errorf("repo.find requires a serialized query")
		}
		query, err := models.Deserialize[map[string]string](args[0])
		if err != nil {
			return "", err
		}
		sheets, err := driver.Repo().Find(ctx, *query)
		if err != nil {
			return "", err
		}
		return models.Serialize(sheets)
	case "spin.listComputeTypes":
		types, err := driver.Spin().ListComputeTypes(ctx)
		if err != nil {
			return "", err
		}
		return models.Serialize(types)
	default:
		return "", fmt.Errorf("unsupported site endpoint: %s", endpoint)
	}
}

// invokeIsolated spawns the site's isolated interpreter with the method
// name and marshalled arguments and extracts the framed return value from
// its stdout. Non-zero exit surfaces as an error carrying the captured
// output.
func (b *Bridge) invokeIsolated(ctx context.Context, venv, siteName, method string, args []string) (string, error) {
	argv := append([]string{siteName, method}, args...)
	cmd := exec.CommandContext(ctx, venv, argv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("isolated invocation %s %s failed: %w; stdout: %s; stderr: %s",
			siteName, method, err, strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()))
	}

	result := ""
	found := false
	for _, line := range strings.Split(stdout.String(), "\n") {
		if strings.HasPrefix(line, ResultMarker) {
			result = strings.TrimPrefix(line, ResultMarker)
			found = true
		} else if strings.TrimSpace(line) != "" {
			// Callee stdout that is not the result is driver logging.
			b.logger.Debug().Str("site", siteName).Str("method", method).Msg(line)
		}
	}
	if !found {
		return "", fmt.Errorf("isolated invocation %s %s returned no result marker", siteName, method)
	}
	return result, nil
}
