package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultIgnoreImages are host processes that never belong to a launched title
var DefaultIgnoreImages = []string{"explorer.exe", "conhost.exe", "powershell.exe"}

// Config holds resolver settings
type Config struct {
	PollInterval time.Duration
	IgnoreImages []string
}

// DefaultConfig returns the resolver defaults
func DefaultConfig() Config {
	return Config{
		PollInterval: 250 * time.Millisecond,
		IgnoreImages: DefaultIgnoreImages,
	}
}

// Criteria selects the process of a launch entry
type Criteria struct {
	// TargetImage is an exact image name hint such as "Skate.exe"
	TargetImage string
	// DisplayName is used when no hint is given
	DisplayName string
	// RootPID is the process reported by activation, 0 when unknown.
	// Matching processes in its tree win over unrelated ones.
	RootPID uint32
}

// Resolver polls the process table for a matching process
type Resolver struct {
	table  ports.ProcessTable
	clock  clockwork.Clock
	cfg    Config
	ignore []string
	logger *zap.Logger
}

// NewResolver creates a new process resolver
func NewResolver(table ports.ProcessTable, clock clockwork.Clock, cfg Config, logger *zap.Logger) *Resolver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.IgnoreImages == nil {
		cfg.IgnoreImages = DefaultIgnoreImages
	}

	var ignore []string
	for _, image := range cfg.IgnoreImages {
		if token := domain.NormalizeImageToken(image); token != "" {
			ignore = append(ignore, token)
		}
	}

	return &Resolver{
		table:  table,
		clock:  clock,
		cfg:    cfg,
		ignore: ignore,
		logger: logger,
	}
}

// Resolve scans immediately and then every poll interval until a process
// matches or the wait budget is exhausted.
func (r *Resolver) Resolve(ctx context.Context, criteria Criteria, waitBudget time.Duration) (*domain.ProcessHandle, error) {
	deadline := r.clock.NewTimer(waitBudget)
	defer deadline.Stop()

	ticker := r.clock.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	scans := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scans++
		procs, err := r.table.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Debug("process snapshot failed",
				zap.String("target", criteria.TargetImage),
				zap.Error(err))
		} else if info, ok := r.Match(criteria, procs); ok {
			r.logger.Info("process resolved",
				zap.Uint32("pid", info.PID),
				zap.String("image", info.ImageName),
				zap.Int("scans", scans))
			return domain.NewProcessHandle(info), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.Chan():
			r.logger.Warn("process resolution timed out",
				zap.String("target", criteria.TargetImage),
				zap.String("display_name", criteria.DisplayName),
				zap.Duration("wait_budget", waitBudget),
				zap.Int("scans", scans))
			return nil, fmt.Errorf("%w: %s after %s", domain.ErrResolutionTimeout, criteria.describe(), waitBudget)
		case <-ticker.Chan():
		}
	}
}

// Match returns the matching process of a snapshot. Candidates in the tree
// of criteria.RootPID are preferred; several candidates are then ordered by
// start time, then by PID.
func (r *Resolver) Match(criteria Criteria, procs []domain.ProcessInfo) (domain.ProcessInfo, bool) {
	var candidates []domain.ProcessInfo

	target := strings.TrimSpace(criteria.TargetImage)
	token := domain.NormalizeImageToken(criteria.DisplayName)

	for _, p := range procs {
		normalized := domain.NormalizeImageToken(p.ImageName)
		if normalized == "" {
			continue
		}
		if r.ignored(normalized) {
			continue
		}

		if target != "" {
			if imageMatches(p.ImageName, target) {
				candidates = append(candidates, p)
			}
			continue
		}

		if token != "" && strings.Contains(normalized, token) {
			candidates = append(candidates, p)
		}
	}

	if len(candidates) == 0 {
		return domain.ProcessInfo{}, false
	}

	if criteria.RootPID != 0 {
		if tree := inTree(criteria.RootPID, candidates, procs); len(tree) > 0 {
			candidates = tree
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].StartTime.Equal(candidates[j].StartTime) {
			return candidates[i].StartTime.Before(candidates[j].StartTime)
		}
		return candidates[i].PID < candidates[j].PID
	})

	return candidates[0], true
}

// ignored reports whether an image contains any ignored token, so
// "powershell_ise.exe" is ignored along with "powershell.exe"
func (r *Resolver) ignored(normalized string) bool {
	for _, token := range r.ignore {
		if strings.Contains(normalized, token) {
			return true
		}
	}
	return false
}

// inTree returns the candidates that are root or one of its descendants
func inTree(root uint32, candidates, procs []domain.ProcessInfo) []domain.ProcessInfo {
	parents := make(map[uint32]uint32, len(procs))
	for _, p := range procs {
		parents[p.PID] = p.ParentPID
	}

	var tree []domain.ProcessInfo
	for _, c := range candidates {
		pid := c.PID
		// PIDs are reused, so parent links can form cycles
		for hops := 0; pid != 0 && hops <= len(parents); hops++ {
			if pid == root {
				tree = append(tree, c)
				break
			}
			next, ok := parents[pid]
			if !ok || next == pid {
				break
			}
			pid = next
		}
	}
	return tree
}

// imageMatches compares image names ignoring case; a hint without an
// extension also matches the ".exe" image.
func imageMatches(image, target string) bool {
	return strings.EqualFold(image, target) || strings.EqualFold(image, target+".exe")
}

func (c Criteria) describe() string {
	if c.TargetImage != "" {
		return fmt.Sprintf("no process with image %q", c.TargetImage)
	}
	return fmt.Sprintf("no process matching %q", c.DisplayName)
}
