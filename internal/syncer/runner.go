package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/zdbackup/internal/models"
)

// Families returns the coordinators of one pass in dependency order:
// tickets reference users and organizations, so those go first.
func Families(d Deps, o Options) []Syncer {
	out := []Syncer{
		NewUsersSyncer(d, o),
		NewOrganizationsSyncer(d, o),
		NewTicketsSyncer(d, o),
	}
	if o.UseTicketEvents {
		out = append(out, NewTicketEventsSyncer(d, o))
	}
	return append(out,
		NewViewsSyncer(d, o),
		NewTriggersSyncer(d, o),
		NewTriggerCategoriesSyncer(d, o),
		NewMacrosSyncer(d, o),
	)
}

// FamilyReport is the outcome of one coordinator within a run.
type FamilyReport struct {
	Resource models.Resource
	Stats    Stats
	Duration time.Duration
}

// Report summarises a run.
type Report struct {
	RunID    string
	Families []FamilyReport
}

// Runner executes one full sync pass. It does not guard against concurrent
// runs; callers serialise invocations.
type Runner struct {
	deps  Deps
	opts  Options
	newID func() string
}

func NewRunner(d Deps, o Options) *Runner {
	return &Runner{deps: d.withDefaults(), opts: o, newID: uuid.NewString}
}

// Run executes every family in order and stops at the first error. Work
// committed before the failure stays committed; the next run resumes from
// the last persisted checkpoints.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: r.newID()}
	log := r.deps.Logger.With("run_id", rep.RunID)

	d := r.deps
	d.Logger = log

	started := d.Now()
	log.Info(ctx, "sync started", "base_url", r.opts.BaseURL)

	for _, s := range Families(d, r.opts) {
		t0 := d.Now()
		st, err := s.Sync(ctx)
		fr := FamilyReport{Resource: s.Resource(), Stats: st, Duration: d.Now().Sub(t0)}
		rep.Families = append(rep.Families, fr)

		args := append([]any{"resource", fr.Resource, "duration", fr.Duration}, st.LogArgs()...)
		if err != nil {
			log.Error(ctx, "sync failed", append(args, "error", err)...)
			return rep, err
		}
		log.Info(ctx, "sync complete", args...)
	}

	log.Info(ctx, "run finished", "duration", d.Now().Sub(started))
	return rep, nil
}
