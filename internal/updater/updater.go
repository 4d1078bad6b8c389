// Package updater discovers recent U.S. actions per country with a web-search
// model, filters duplicates with a second model and appends the survivors to
// the conflicts dataset.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/conflictmap/internal/cache"
	"github.com/ppiankov/conflictmap/internal/editor"
	"github.com/ppiankov/conflictmap/internal/llm"
	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/worker"
)

const backupTimeLayout = "2006-01-02_150405"

// ErrNoCountries is returned when neither config nor flags name a country
var ErrNoCountries = errors.New("no countries configured")

// Options select what one run touches
type Options struct {
	DatasetPath string // conflicts.json to update
	Country     string // restrict the run to one ISO code
	DryRun      bool
}

// Report summarizes a run
type Report struct {
	Countries  []string
	Found      int
	New        []model.Conflict
	Rejected   []Rejected
	Failed     map[string]error // country code -> discovery error
	BackupPath string
	Saved      bool
	StateSaved bool
}

// Rejected is an action the verification step turned down
type Rejected struct {
	Action Action
	Reason string
}

// Updater runs discovery and verification
type Updater struct {
	discovery llm.Provider
	verifier  llm.Provider
	limiter   *worker.Limiter
	cfg       model.UpdaterConfig
	workers   int
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an updater. Both providers are required.
func New(discovery, verifier llm.Provider, cfg model.UpdaterConfig, workers int, logger *zap.Logger) (*Updater, error) {
	if discovery == nil {
		return nil, fmt.Errorf("discovery provider: %w", llm.ErrNotConfigured)
	}
	if verifier == nil {
		return nil, fmt.Errorf("verification provider: %w", llm.ErrNotConfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 90
	}

	delay := time.Duration(cfg.RateLimitDelay * float64(time.Second))

	return &Updater{
		discovery: discovery,
		verifier:  verifier,
		limiter:   worker.NewIntervalLimiter(delay),
		cfg:       cfg,
		workers:   workers,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// countries resolves the country list for a run
func (u *Updater) countries(only string) ([]string, error) {
	if only != "" {
		code := strings.ToUpper(strings.TrimSpace(only))
		if !model.KnownCountryCode(code) {
			return nil, fmt.Errorf("unknown country code: %s", only)
		}
		return []string{code}, nil
	}
	if len(u.cfg.Countries) == 0 {
		return nil, ErrNoCountries
	}
	codes := make([]string, len(u.cfg.Countries))
	for i, code := range u.cfg.Countries {
		codes[i] = strings.ToUpper(code)
	}
	return codes, nil
}

// Run updates the dataset at opts.DatasetPath
func (u *Updater) Run(ctx context.Context, opts Options) (*Report, error) {
	codes, err := u.countries(opts.Country)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(opts.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("read conflicts: %w", err)
	}
	conflicts, err := editor.ParseDataset(data)
	if err != nil {
		return nil, fmt.Errorf("parse conflicts: %w", err)
	}

	statePath, err := cache.ExpandHome(u.cfg.StateFile)
	if err != nil {
		return nil, err
	}
	state, err := LoadState(statePath)
	if err != nil {
		return nil, err
	}

	u.logger.Info("update started",
		zap.Int("countries", len(codes)),
		zap.Int("existing", len(conflicts)),
		zap.Bool("dry_run", opts.DryRun))

	report := &Report{Countries: codes, Failed: map[string]error{}}
	today := string(model.DateOf(u.now()))

	for _, res := range u.discover(ctx, codes, state) {
		if res.err != nil {
			// the window stays open for the next run
			u.logger.Warn("discovery failed", zap.String("country", res.code), zap.Error(res.err))
			report.Failed[res.code] = res.err
			continue
		}

		report.Found += len(res.actions)
		for _, action := range res.actions {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			verdict, err := u.verify(ctx, action, conflicts)
			if err != nil {
				u.logger.Warn("verification failed", zap.String("action", action.Name), zap.Error(err))
				report.Rejected = append(report.Rejected, Rejected{Action: action, Reason: err.Error()})
				continue
			}
			if reason := verdict.Rejection(); reason != "" {
				u.logger.Info("action rejected", zap.String("action", action.Name), zap.String("reason", reason))
				report.Rejected = append(report.Rejected, Rejected{Action: action, Reason: reason})
				continue
			}

			c := buildConflict(action, verdict, conflicts, u.now())
			u.logger.Info("new conflict",
				zap.String("id", c.ID),
				zap.String("type", string(c.Type)),
				zap.String("country", res.code))
			report.New = append(report.New, c)
			// later actions are checked against it
			conflicts = append(conflicts, c)
		}

		state[res.code] = today
	}

	if opts.DryRun {
		return report, nil
	}

	if len(report.New) > 0 {
		backup, err := u.backup(opts.DatasetPath, data)
		if err != nil {
			return report, err
		}
		report.BackupPath = backup

		out, err := editor.MarshalDataset(conflicts)
		if err != nil {
			return report, err
		}
		if err := os.WriteFile(opts.DatasetPath, out, 0o644); err != nil {
			return report, fmt.Errorf("write conflicts: %w", err)
		}
		report.Saved = true
	}

	if err := state.Save(statePath); err != nil {
		return report, err
	}
	report.StateSaved = true

	u.logger.Info("update finished",
		zap.Int("new", len(report.New)),
		zap.Int("rejected", len(report.Rejected)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

// discover fans the countries out on the worker pool and returns the
// results in country order
func (u *Updater) discover(ctx context.Context, codes []string, state State) []*discoverResult {
	jobs := make([]worker.Job, len(codes))
	for i, code := range codes {
		jobs[i] = &discoverJob{
			index:        i,
			code:         code,
			lastCheck:    state[code],
			lookbackDays: u.cfg.LookbackDays,
			provider:     u.discovery,
			limiter:      u.limiter,
		}
	}

	pool := worker.NewPoolWithContext(ctx, u.workers)
	var results []*discoverResult
	for _, r := range pool.Run(jobs) {
		results = append(results, r.(*discoverResult))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].index < results[j].index
	})
	return results
}

// backup copies the original dataset bytes to BackupDir as
// <name>_YYYY-MM-DD_HHMMSS.json. A relative BackupDir sits next to the dataset.
func (u *Updater) backup(datasetPath string, data []byte) (string, error) {
	dir, err := cache.ExpandHome(u.cfg.BackupDir)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = filepath.Dir(datasetPath)
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(datasetPath), dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	base := filepath.Base(datasetPath)
	ext := filepath.Ext(base)
	name := fmt.Sprintf("%s_%s%s", strings.TrimSuffix(base, ext), u.now().Format(backupTimeLayout), ext)
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}

// PrintReport writes a human-readable summary
func PrintReport(w io.Writer, r *Report, dryRun bool) {
	fmt.Fprintf(w, "Countries processed: %d\n", len(r.Countries))
	fmt.Fprintf(w, "Actions found: %d\n", r.Found)
	fmt.Fprintf(w, "New conflicts found: %d\n", len(r.New))
	if len(r.Failed) > 0 {
		fmt.Fprintf(w, "Countries with errors: %d\n", len(r.Failed))
	}

	if len(r.New) > 0 {
		fmt.Fprintln(w, "\nNew entries:")
		for _, c := range r.New {
			fmt.Fprintf(w, "  - %s (%s)\n", c.Name, c.Countries[0])
		}
	}

	switch {
	case dryRun && len(r.New) > 0:
		fmt.Fprintln(w, "\nDRY RUN - No changes saved")
		fmt.Fprintln(w, "Run without --dry-run to apply changes")
	case dryRun:
		fmt.Fprintln(w, "\nNo new conflicts to add")
	case r.Saved:
		fmt.Fprintf(w, "\nBackup created: %s\n", r.BackupPath)
		fmt.Fprintln(w, "Dataset updated")
	default:
		fmt.Fprintln(w, "\nState updated (no new conflicts)")
	}
}
