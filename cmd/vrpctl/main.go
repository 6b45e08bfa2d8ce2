// Command vrpctl solves and validates problem files offline with the same
// solvers the API uses.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"vrpsolver/internal/buildinfo"
	"vrpsolver/internal/integrations"
	"vrpsolver/internal/integrations/csvfile"
	"vrpsolver/internal/logging"
	"vrpsolver/internal/model"
	"vrpsolver/internal/opt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type solveFlags struct {
	algorithm    string
	maxExactJobs int
	objective    string
	output       string
	vehiclesCSV  string
	jobsCSV      string
	matrixCSV    string
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "vrpctl",
		Short:         "Solve capacitated vehicle routing problems",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.Setup(logLevel, "text", cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.AddCommand(newSolveCmd(), newValidateCmd(), newVersionCmd())
	return root
}

func newSolveCmd() *cobra.Command {
	var f solveFlags
	cmd := &cobra.Command{
		Use:   "solve [problem.json|problem.yaml]",
		Short: "Solve a problem file and print the routes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := f.source(args)
			if err != nil {
				return err
			}
			req, err := load(cmd.Context(), src)
			if err != nil {
				return err
			}
			resp, err := solve(cmd.Context(), req, f)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), f.output, resp)
		},
	}
	cmd.Flags().StringVar(&f.algorithm, "algorithm", "", "exact, greedy or auto (default: the file's algorithm, else auto)")
	cmd.Flags().IntVar(&f.maxExactJobs, "max-exact-jobs", opt.DefaultMaxExactJobs, "job ceiling for the exact solver; 0 disables it for explicit exact runs")
	cmd.Flags().StringVar(&f.objective, "objective", "", "duration or travel (default: the file's objective, else duration)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "json", "output format: json or yaml")
	cmd.Flags().StringVar(&f.vehiclesCSV, "vehicles-csv", "", "vehicles CSV (id,start_index,capacity)")
	cmd.Flags().StringVar(&f.jobsCSV, "jobs-csv", "", "jobs CSV (id,location_index,delivery,service)")
	cmd.Flags().StringVar(&f.matrixCSV, "matrix-csv", "", "travel time matrix CSV")
	cmd.MarkFlagsRequiredTogether("vehicles-csv", "jobs-csv", "matrix-csv")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <problem.json|problem.yaml>",
		Short: "Check a problem file without solving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := load(cmd.Context(), integrations.FileSource{Path: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d vehicles, %d jobs, %d locations\n", len(req.Vehicles), len(req.Jobs), len(req.Matrix))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "vrpctl "+buildinfo.String())
		},
	}
}

func (f solveFlags) source(args []string) (integrations.Source, error) {
	csv := f.vehiclesCSV != "" || f.jobsCSV != "" || f.matrixCSV != ""
	switch {
	case csv && len(args) > 0:
		return nil, fmt.Errorf("give either a problem file or the CSV flags, not both")
	case csv:
		return csvfile.Source{VehiclesPath: f.vehiclesCSV, JobsPath: f.jobsCSV, MatrixPath: f.matrixCSV}, nil
	case len(args) == 1:
		return integrations.FileSource{Path: args[0]}, nil
	}
	return nil, fmt.Errorf("a problem file or --vehicles-csv/--jobs-csv/--matrix-csv is required")
}

func load(ctx context.Context, src integrations.Source) (model.OptimizeRequest, error) {
	req, err := src.Load(ctx)
	if err != nil {
		return req, err
	}
	if err := req.Validate(); err != nil {
		return req, fmt.Errorf("%s: %w", src.Name(), err)
	}
	log.WithFields(log.Fields{"source": src.Name(), "vehicles": len(req.Vehicles), "jobs": len(req.Jobs)}).Debug("problem loaded")
	return req, nil
}

func solve(ctx context.Context, req model.OptimizeRequest, f solveFlags) (model.OptimizeResponse, error) {
	algorithm := f.algorithm
	if algorithm == "" {
		algorithm = req.Algorithm
	}
	a, err := opt.ParseAlgorithm(algorithm)
	if err != nil {
		return model.OptimizeResponse{}, err
	}
	objective := f.objective
	if objective == "" {
		objective = req.Objective
	}
	if objective != "" && objective != "duration" && objective != "travel" {
		return model.OptimizeResponse{}, fmt.Errorf("unknown objective %q (want duration or travel)", objective)
	}
	sol, st, err := opt.Solve(ctx, req.Problem(), opt.Options{
		Algorithm:    a,
		MaxExactJobs: f.maxExactJobs,
		Objective:    opt.ParseObjective(objective),
	})
	if err != nil {
		return model.OptimizeResponse{}, err
	}
	return model.NewOptimizeResponse(sol, st), nil
}

func render(w io.Writer, format string, resp model.OptimizeResponse) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(resp)
	}
	return fmt.Errorf("unknown output format %q (want json or yaml)", format)
}
