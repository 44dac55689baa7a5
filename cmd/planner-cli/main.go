// planner-cli drives a full planning run from local files: it ingests
// the programs/schedule/OB tables, runs the multi-night scheduler
// against a configured site, and prints the run summary. A `remote`
// subcommand submits the same tables to a planner-server instead of
// planning locally.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/naojsoft/qplan-core/entity"
	"github.com/naojsoft/qplan-core/ephemeris"
	"github.com/naojsoft/qplan-core/evaluate"
	"github.com/naojsoft/qplan-core/feasibility"
	"github.com/naojsoft/qplan-core/ingest"
	"github.com/naojsoft/qplan-core/rpc"
	"github.com/naojsoft/qplan-core/scheduler"
)

var (
	programsPath string
	schedulePath string
	obsPath      string
	weightsPath  string
	sitePath     string
	noDelay      bool
	jsonEvents   bool

	serverAddress string
	timeout       time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "planner-cli",
		Short: "Queue observation planner",
		Long: `planner-cli plans queue observations for a ground-based telescope.

Given a programs table, a schedule of available nights, and a table of
observing blocks, it assigns OBs to time slots night by night, subject
to visibility and operational constraints, and prints a summary of what
was scheduled and why the rest was not.

Examples:
  # Plan locally from CSV tables
  planner-cli plan --programs programs.csv --schedule nights.csv --obs obs.csv

  # Use custom cost-function weights and a site definition
  planner-cli plan --programs p.csv --schedule n.csv --obs o.csv \
      --weights weights.yaml --site site.yaml

  # Submit the same run to a planner-server
  planner-cli remote --programs p.csv --schedule n.csv --obs o.csv -s localhost:50051`,
	}

	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newRemoteCommand())
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addTableFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&programsPath, "programs", "", "programs table (CSV)")
	cmd.Flags().StringVar(&schedulePath, "schedule", "", "schedule table (CSV)")
	cmd.Flags().StringVar(&obsPath, "obs", "", "observing-blocks table (CSV)")
	cmd.Flags().StringVar(&weightsPath, "weights", "", "cost-function weights (YAML, optional)")
	_ = cmd.MarkFlagRequired("programs")
	_ = cmd.MarkFlagRequired("schedule")
	_ = cmd.MarkFlagRequired("obs")
}

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan locally and print the run summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocalPlan()
		},
	}
	addTableFlags(cmd)
	cmd.Flags().StringVar(&sitePath, "site", "", "site definition (YAML, optional; defaults to the Subaru site)")
	cmd.Flags().BoolVar(&noDelay, "no-delay", false, "reject candidates that would idle-wait for visibility")
	return cmd
}

// siteFile is the YAML shape of a --site definition.
type siteFile struct {
	Name         string  `yaml:"name"`
	Timezone     string  `yaml:"timezone"`
	LongitudeDeg float64 `yaml:"longitude_deg"`
	LatitudeDeg  float64 `yaml:"latitude_deg"`
	ElevationM   float64 `yaml:"elevation_m"`
	PressureMbar float64 `yaml:"pressure_mbar"`
	TempC        float64 `yaml:"temp_c"`
	HumidityPct  float64 `yaml:"humidity_pct"`
}

func loadSite(path string) (*ephemeris.Site, error) {
	if path == "" {
		return ephemeris.Subaru(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site file: %w", err)
	}
	var sf siteFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse site file: %w", err)
	}
	loc := time.UTC
	if sf.Timezone != "" {
		loc, err = time.LoadLocation(sf.Timezone)
		if err != nil {
			return nil, fmt.Errorf("site timezone: %w", err)
		}
	}
	return ephemeris.NewSite(sf.Name, loc,
		sf.LongitudeDeg, sf.LatitudeDeg, sf.ElevationM,
		sf.PressureMbar, sf.TempC, sf.HumidityPct), nil
}

func runLocalPlan() error {
	progFile, err := os.Open(programsPath)
	if err != nil {
		return err
	}
	defer progFile.Close()
	progResult := ingest.ParsePrograms(progFile)
	reportIngestErrors("programs", progResult.Errors)

	programByID := make(map[string]*entity.Program, len(progResult.Programs))
	for _, p := range progResult.Programs {
		programByID[p.Proposal] = p
	}

	schedFile, err := os.Open(schedulePath)
	if err != nil {
		return err
	}
	defer schedFile.Close()
	nightsResult := ingest.ParseSchedule(schedFile)
	reportIngestErrors("schedule", nightsResult.Errors)

	obsFile, err := os.Open(obsPath)
	if err != nil {
		return err
	}
	defer obsFile.Close()
	obsResult := ingest.ParseOBs(obsFile, programByID)
	reportIngestErrors("obs", obsResult.Errors)

	weights, limits := evaluate.DefaultWeights(), evaluate.DefaultLimits()
	if weightsPath != "" {
		wf, err := os.Open(weightsPath)
		if err != nil {
			return err
		}
		defer wf.Close()
		weights, limits, err = ingest.LoadWeights(wf)
		if err != nil {
			return err
		}
	}

	site, err := loadSite(sitePath)
	if err != nil {
		return err
	}
	engine, err := ephemeris.NewEngine(site, 0, 0)
	if err != nil {
		return err
	}

	cfg := evaluate.DefaultConfig()
	cfg.AllowDelay = !noDelay

	nightSched := scheduler.New(
		feasibility.New(engine),
		evaluate.New(engine, cfg),
		evaluate.NewComparator(weights, limits),
		nil,
	)
	driver := scheduler.NewDriver(nightSched)

	start := time.Now()
	result, err := driver.Run(nightsResult.Nights, obsResult.OBs, progResult.Programs, nil, nil)
	if err != nil {
		if _, ok := err.(scheduler.Cancelled); !ok {
			return err
		}
	}

	summary := scheduler.Summarize(result, progResult.Programs, obsResult.OBs, time.Since(start))
	fmt.Print(scheduler.Reporter{}.Render(summary))
	return nil
}

func reportIngestErrors(table string, errs []ingest.InvalidInput) {
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "warning: %s row rejected: %v\n", table, e)
	}
}

func newRemoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Submit a planning run to a planner-server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemotePlan()
		},
	}
	addTableFlags(cmd)
	cmd.Flags().StringVarP(&serverAddress, "server", "s", "localhost:50051", "planner-server gRPC address")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Minute, "request timeout")
	cmd.Flags().BoolVar(&jsonEvents, "json", false, "print every streamed event as JSON instead of just the summary")
	return cmd
}

func runRemotePlan() error {
	read := func(path string) (string, error) {
		data, err := os.ReadFile(path)
		return string(data), err
	}

	programs, err := read(programsPath)
	if err != nil {
		return err
	}
	schedule, err := read(schedulePath)
	if err != nil {
		return err
	}
	obs, err := read(obsPath)
	if err != nil {
		return err
	}
	weights := ""
	if weightsPath != "" {
		weights, err = read(weightsPath)
		if err != nil {
			return err
		}
	}

	client, err := rpc.Dial(serverAddress)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req := &rpc.PlanRequest{
		ProgramsCSV: programs,
		ScheduleCSV: schedule,
		OBsCSV:      obs,
		WeightsYAML: weights,
	}

	return client.RunPlanStream(ctx, req, func(ev *rpc.PlanEvent) error {
		if jsonEvents {
			return json.NewEncoder(os.Stdout).Encode(ev)
		}
		switch {
		case ev.Type == "run_completed" && ev.RunCompleted != nil:
			fmt.Print(ev.RunCompleted.Summary)
		case ev.Type == "error":
			return fmt.Errorf("server: %s", ev.Error)
		}
		return nil
	})
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the planner version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("planner-cli 1.0.0")
		},
	}
}
