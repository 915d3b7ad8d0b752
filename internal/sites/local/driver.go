// -----------------------------------------------------------------------
// Local site driver - shell execution and file management on the host
// -----------------------------------------------------------------------

package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/common"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/models"
)

// Class is the driver class name referenced by site configs.
const Class = "local"

// Driver is the built-in local site: the run pillar executes shell
// commands on the host, the repo pillar copies files and notates them.
type Driver struct {
	name   string
	cfg    common.SiteConfig
	rt     interfaces.Runtime
	logger arbor.ILogger

	mu   sync.Mutex
	jobs map[string]*trackedJob // nativeID -> live/finished job
}

type trackedJob struct {
	cmd    *exec.Cmd
	status models.Status
}

// New constructs the local driver. Registered as a DriverFactory under Class.
func New(name string, cfg common.SiteConfig, rt interfaces.Runtime, logger arbor.ILogger) (interfaces.SiteDriver, error) {
	return &Driver{
		name:   name,
		cfg:    cfg,
		rt:     rt,
		logger: logger,
		jobs:   make(map[string]*trackedJob),
	}, nil
}

// Name returns the configured site name.
func (d *Driver) Name() string { return d.name }

// Auth returns the auth pillar. The local site has no credentials.
func (d *Driver) Auth() interfaces.SiteAuth { return (*localAuth)(d) }

// Run returns the job execution pillar.
func (d *Driver) Run() interfaces.SiteRun { return (*localRun)(d) }

// Repo returns the data management pillar.
func (d *Driver) Repo() interfaces.SiteRepo { return (*localRepo)(d) }

// Spin returns the provisioning pillar.
func (d *Driver) Spin() interfaces.SiteSpin { return (*localSpin)(d) }

type localAuth Driver

func (a *localAuth) Login(ctx context.Context) error { return nil }

func (a *localAuth) IsAuthCurrent(ctx context.Context) (bool, error) { return true, nil }

type localRun Driver

// Submit runs the definition as a shell command, emitting RUNNING and the
// terminal status as the process progresses. The caller has already
// emitted READY and PENDING for the context.
func (r *localRun) Submit(ctx context.Context, defn *models.JobDefn, jobCtx *models.JobContext, computeType string, runArgs []string) (*models.JobStatus, error) {
	d := (*Driver)(r)

	command := defn.EntryPoint
	args := append(append([]string{}, defn.JobArgs...), runArgs...)
	if len(args) > 0 {
		command = command + " " + strings.Join(args, " ")
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	// The job id rides the environment so nested work self-attributes.
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", common.EnvJobID, jobCtx.JobID))

	d.mu.Lock()
	d.jobs[jobCtx.NativeID] = &trackedJob{cmd: cmd, status: models.StatusRunning}
	d.mu.Unlock()

	if _, err := d.rt.EmitStatus(jobCtx, models.StatusRunning, "running", ""); err != nil {
		d.logger.Warn().Err(err).Str("job_id", jobCtx.JobID).Msg("Failed to emit RUNNING")
	}

	output, err := cmd.CombinedOutput()
	final := models.StatusComplete
	native := "exit 0"
	if err != nil {
		final = models.StatusFailed
		native = err.Error()
		d.logger.Error().Err(err).Str("job_id", jobCtx.JobID).Str("output", strings.TrimSpace(string(output))).Msg("Local job failed")
	}

	d.mu.Lock()
	d.jobs[jobCtx.NativeID].status = final
	d.mu.Unlock()

	if _, err := d.rt.EmitStatus(jobCtx, final, native, ""); err != nil {
		d.logger.Warn().Err(err).Str("job_id", jobCtx.JobID).Msg("Failed to emit terminal status")
	}

	return models.NewJobStatus(jobCtx, final), nil
}

// GetStatus reports the driver's view of a native job id, raising the
// distinguished not-found condition for jobs it never ran.
func (r *localRun) GetStatus(ctx context.Context, nativeID string) (models.Status, error) {
	d := (*Driver)(r)
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[nativeID]
	if !ok {
		return models.StatusUnknown, interfaces.ErrJobNotFound
	}
	return job.status, nil
}

// Cancel kills a running local process. Finished jobs refuse cancellation.
func (r *localRun) Cancel(ctx context.Context, nativeID string) (bool, error) {
	d := (*Driver)(r)
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[nativeID]
	if !ok {
		return false, interfaces.ErrJobNotFound
	}
	if job.status.IsTerminal() || job.cmd.Process == nil {
		return false, nil
	}
	if err := job.cmd.Process.Kill(); err != nil {
		return false, err
	}
	job.status = models.StatusCancelled
	return true, nil
}

type localRepo Driver

// Put copies a local file into place and notates the put.
func (p *localRepo) Put(ctx context.Context, localPath, siteObjPath string, jobCtx *models.JobContext, props map[string]string) (*models.Metasheet, error) {
	d := (*Driver)(p)
	if siteObjPath != "" && siteObjPath != localPath {
		if err := copyFile(localPath, siteObjPath); err != nil {
			return nil, fmt.Errorf("local put failed: %w", err)
		}
	}
	sheet := d.rt.NotatePut(jobCtx, localPath, siteObjPath, props)
	if sheet == nil {
		return nil, fmt.Errorf("failed to notate put of %s", localPath)
	}
	return sheet, nil
}

// Get copies a managed file back to a local destination and notates the get.
func (p *localRepo) Get(ctx context.Context, siteObjPath, localPath string, jobCtx *models.JobContext) (string, error) {
	d := (*Driver)(p)
	dest := localPath
	if info, err := os.Stat(localPath); err == nil && info.IsDir() {
		dest = filepath.Join(localPath, filepath.Base(siteObjPath))
	}
	if dest != siteObjPath {
		if err := copyFile(siteObjPath, dest); err != nil {
			return "", fmt.Errorf("local get failed: %w", err)
		}
	}
	d.rt.NotateGet(jobCtx, dest, siteObjPath, nil)
	return dest, nil
}

// Find delegates to the middleware metasheet query.
func (p *localRepo) Find(ctx context.Context, query map[string]string) ([]*models.Metasheet, error) {
	d := (*Driver)(p)
	return d.rt.Find(query), nil
}

type localSpin Driver

func (s *localSpin) ListComputeTypes(ctx context.Context) ([]string, error) {
	return []string{"default"}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
