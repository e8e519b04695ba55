package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lg/fitai-go-api/internal/core"
	"lg/fitai-go-api/internal/model"
	"lg/fitai-go-api/internal/store/localcache"
	"lg/fitai-go-api/internal/store/memstore"
	"lg/fitai-go-api/internal/store/remote"
	"lg/fitai-go-api/internal/syncer"
)

var errNoDB = errors.New("no database configured: set DB_URL or pass --db-url")

var (
	planUser     string
	planDryRun   bool
	planEntities []string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <sections.json|->",
	Short: "Validate a plan without saving anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := readSections(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		svc, closeFn, err := openService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeFn()

		v, err := svc.Evaluate(s)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), v); err != nil {
			return err
		}
		if v.Blocked() {
			return &core.SafetyBlockedError{Verdict: v}
		}
		return nil
	},
}

var computeCmd = &cobra.Command{
	Use:   "compute <sections.json|->",
	Short: "Print computed metrics and their verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := readSections(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		svc, closeFn, err := openService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeFn()

		m, err := svc.Compute(s)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), m)
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize <sections.json|->",
	Short: "Compute, validate and sync a plan for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if planUser == "" {
			return errors.New("--user is required")
		}
		s, err := readSections(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		svc, closeFn, err := openService(cmd.Context(), planDryRun)
		if err != nil {
			return err
		}
		defer closeFn()

		m, rep, err := svc.Finalize(cmd.Context(), planUser, s)
		var blocked *core.SafetyBlockedError
		if errors.As(err, &blocked) {
			printJSON(cmd.OutOrStdout(), blocked.Verdict)
			return err
		}
		if rep != nil {
			out := struct {
				Metrics model.ComputedMetrics `json:"metrics"`
				Report  *syncer.Report        `json:"report"`
			}{m, rep}
			if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
				return perr
			}
		}
		if err != nil {
			return err
		}
		if failed := rep.Failed(); len(failed) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "some entities were not synced; retry with: fitai resync --user %s --entity %s\n",
				planUser, joinEntities(failed))
		}
		return nil
	},
}

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Re-send cached entities to the remote store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if planUser == "" || len(planEntities) == 0 {
			return errors.New("--user and at least one --entity are required")
		}
		entities := make([]model.Entity, 0, len(planEntities))
		for _, e := range planEntities {
			entity := model.Entity(strings.TrimSpace(e))
			if !entity.Valid() {
				return fmt.Errorf("unknown entity %q", e)
			}
			entities = append(entities, entity)
		}
		svc, closeFn, err := openService(cmd.Context(), planDryRun)
		if err != nil {
			return err
		}
		defer closeFn()

		rep, err := svc.Resync(cmd.Context(), planUser, entities)
		if rep != nil {
			if perr := printJSON(cmd.OutOrStdout(), rep); perr != nil {
				return perr
			}
		}
		return err
	},
}

// openService builds a core service over the configured stores, or over
// in-memory stores when dryRun is set.
func openService(ctx context.Context, dryRun bool) (*core.Service, func(), error) {
	opts := syncer.Options{Timeout: cfg.SyncTimeout, MaxConcurrent: cfg.SyncConcurrency}
	if dryRun {
		cache := memstore.NewCache()
		svc := core.New(syncer.New(cache, memstore.NewRemote(), opts), cache, core.Options{})
		return svc, svc.Close, nil
	}
	if cfg.DBURL == "" {
		return nil, nil, errNoDB
	}
	pool, err := remote.Connect(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}
	cache, err := localcache.Open(cfg.CachePath)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	svc := core.New(syncer.New(cache, remote.New(pool), opts), cache, core.Options{})
	return svc, func() {
		svc.Close()
		cache.Close()
		pool.Close()
	}, nil
}

// readSections decodes a sections document from path, or from stdin for "-".
func readSections(path string, stdin io.Reader) (model.Sections, error) {
	var s model.Sections
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return s, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("decode sections: %w", err)
	}
	return s, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinEntities(entities []model.Entity) string {
	parts := make([]string, len(entities))
	for i, e := range entities {
		parts[i] = string(e)
	}
	return strings.Join(parts, ",")
}

func init() {
	for _, c := range []*cobra.Command{finalizeCmd, resyncCmd} {
		c.Flags().StringVar(&planUser, "user", "", "User ID")
		c.Flags().BoolVar(&planDryRun, "dry-run", false, "Use in-memory stores instead of Postgres and the local cache")
	}
	resyncCmd.Flags().StringSliceVar(&planEntities, "entity", nil, "Entity to resync (repeatable or comma-separated)")
	rootCmd.AddCommand(evaluateCmd, computeCmd, finalizeCmd, resyncCmd)
}
