// Command seatplan assigns seats from a roster file without running the API.
//
//	seatplan --roster class.csv --rows 5 --cols 6 --pair 3:14 --seed 42
//	seatplan --roster class.xlsx --rows 5 --cols 6 --format pdf --out chart.pdf
//	seatplan token --user teacher-1 --role TEACHER
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/seating-api/internal/models"
	"github.com/noah-isme/seating-api/internal/roster"
	"github.com/noah-isme/seating-api/internal/seating"
	"github.com/noah-isme/seating-api/internal/service"
	"github.com/noah-isme/seating-api/pkg/config"
	"github.com/noah-isme/seating-api/pkg/export"
)

func main() {
	logr := newCLILogger()
	defer logr.Sync() //nolint:errcheck

	var err error
	if len(os.Args) > 1 && os.Args[1] == "token" {
		err = runToken(os.Args[2:], os.Stdout)
	} else {
		err = runPlan(os.Args[1:], os.Stdout, logr)
	}
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logr.Error("seatplan failed", zap.Error(err))
		os.Exit(1)
	}
}

func newCLILogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	logr, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logr
}

type planOptions struct {
	rosterPath string
	rows       int
	cols       int
	seed       int64
	seedSet    bool
	pairs      []seating.Pair
	order      []seating.Seat
	budget     int
	format     string
	out        string
}

func parsePlanFlags(args []string) (*planOptions, error) {
	fs := pflag.NewFlagSet("seatplan", pflag.ContinueOnError)
	opts := &planOptions{}
	var rawPairs []string
	var rawOrder string

	fs.StringVarP(&opts.rosterPath, "roster", "r", "", "roster file (.csv or .xlsx)")
	fs.IntVar(&opts.rows, "rows", 0, "number of seat rows")
	fs.IntVar(&opts.cols, "cols", 0, "number of seat columns")
	fs.Int64Var(&opts.seed, "seed", 0, "shuffle seed; random when omitted")
	fs.StringArrayVarP(&rawPairs, "pair", "p", nil, "students to keep apart as a:b, repeatable")
	fs.StringVar(&rawOrder, "order", "", "explicit seat order as r:c,r:c,...")
	fs.IntVar(&opts.budget, "budget", 0, "maximum seat inspections, 0 for unlimited")
	fs.StringVarP(&opts.format, "format", "f", "text", "output format: text, csv, pdf or xlsx")
	fs.StringVarP(&opts.out, "out", "o", "", "write the chart to this file instead of stdout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.rosterPath == "" {
		return nil, errors.New("--roster is required")
	}
	if opts.rows <= 0 || opts.cols <= 0 {
		return nil, errors.New("--rows and --cols must be positive")
	}
	opts.seedSet = fs.Changed("seed")

	for _, raw := range rawPairs {
		pair, err := parsePair(raw)
		if err != nil {
			return nil, err
		}
		opts.pairs = append(opts.pairs, pair)
	}
	if rawOrder != "" {
		order, err := parseOrder(rawOrder)
		if err != nil {
			return nil, err
		}
		opts.order = order
	}
	if opts.format != "text" {
		if _, err := export.ForFormat(opts.format); err != nil {
			return nil, err
		}
		if opts.format != string(export.FormatCSV) && opts.out == "" {
			return nil, fmt.Errorf("--out is required for %s output", opts.format)
		}
	}
	return opts, nil
}

func parsePair(raw string) (seating.Pair, error) {
	a, b, ok := strings.Cut(raw, ":")
	if !ok {
		return seating.Pair{}, fmt.Errorf("pair %q: expected a:b", raw)
	}
	ida, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return seating.Pair{}, fmt.Errorf("pair %q: %w", raw, err)
	}
	idb, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return seating.Pair{}, fmt.Errorf("pair %q: %w", raw, err)
	}
	if ida == idb {
		return seating.Pair{}, fmt.Errorf("pair %q: a student cannot be separated from itself", raw)
	}
	return seating.NewPair(ida, idb), nil
}

func parseOrder(raw string) ([]seating.Seat, error) {
	parts := strings.Split(raw, ",")
	order := make([]seating.Seat, 0, len(parts))
	for _, part := range parts {
		r, c, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("order seat %q: expected r:c", part)
		}
		row, err := strconv.Atoi(r)
		if err != nil {
			return nil, fmt.Errorf("order seat %q: %w", part, err)
		}
		col, err := strconv.Atoi(c)
		if err != nil {
			return nil, fmt.Errorf("order seat %q: %w", part, err)
		}
		order = append(order, seating.Seat{Row: row, Col: col})
	}
	return order, nil
}

func runPlan(args []string, stdout io.Writer, logr *zap.Logger) error {
	opts, err := parsePlanFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := checkGrid(opts, cfg.Seating); err != nil {
		return err
	}

	f, err := os.Open(opts.rosterPath)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	parsed, err := roster.Parse(opts.rosterPath, f)
	if err != nil {
		var malformed *roster.MalformedRosterError
		if errors.As(err, &malformed) {
			for _, row := range malformed.Rows {
				logr.Warn("rejected roster row", zap.Int("row", row.Row), zap.String("field", row.Field), zap.String("reason", row.Reason))
			}
		}
		return err
	}
	if cfg.Seating.MaxStudents > 0 && len(parsed.Students) > cfg.Seating.MaxStudents {
		return fmt.Errorf("roster has %d students, at most %d are supported", len(parsed.Students), cfg.Seating.MaxStudents)
	}

	pairs := make([]seating.Pair, 0, len(parsed.Pairs)+len(opts.pairs))
	pairs = append(pairs, parsed.Pairs...)
	pairs = append(pairs, opts.pairs...)
	req := seating.Request{
		Grid:       seating.Grid{Rows: opts.rows, Cols: opts.cols},
		Students:   parsed.Students,
		Pairs:      pairs,
		Order:      opts.order,
		StepBudget: opts.budget,
	}
	if opts.order == nil {
		seed := opts.seed
		if !opts.seedSet {
			seed = time.Now().UnixNano()
		}
		req.Seed = &seed
	}

	plan, err := seating.Run(req)
	if err != nil {
		return err
	}
	for _, miss := range plan.PreferenceMisses {
		logr.Warn("preference not honoured",
			zap.Int("student_id", miss.StudentID),
			zap.String("wanted", string(miss.Wanted)),
			zap.Stringer("seat", miss.Seat))
	}

	if opts.format == "text" {
		return writeText(stdout, plan, req.Seed)
	}
	return writeRendered(stdout, opts, chartFromPlan(plan, parsed.Students))
}

// checkGrid applies the same grid bounds as the API.
func checkGrid(opts *planOptions, limits config.SeatingConfig) error {
	if limits.MaxRows > 0 && opts.rows > limits.MaxRows {
		return fmt.Errorf("--rows must not exceed %d", limits.MaxRows)
	}
	if limits.MaxCols > 0 && opts.cols > limits.MaxCols {
		return fmt.Errorf("--cols must not exceed %d", limits.MaxCols)
	}
	return nil
}

func writeText(w io.Writer, plan *seating.Plan, seed *int64) error {
	if seed != nil {
		fmt.Fprintf(w, "seed: %d\n", *seed)
	}
	width := 1
	for _, row := range plan.Chart {
		for _, cell := range row {
			if len(cell) > width {
				width = len(cell)
			}
		}
	}
	for _, row := range plan.Chart {
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell == "" {
				cell = "."
			}
			cells[i] = fmt.Sprintf("%-*s", width, cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, " "), " "))
	}
	if len(plan.Violations) == 0 {
		_, err := fmt.Fprintln(w, "violations: none")
		return err
	}
	fmt.Fprintf(w, "violations: %d\n", len(plan.Violations))
	for _, v := range plan.Violations {
		fmt.Fprintf(w, "  %s at %s and %s\n", v.Pair, v.SeatA, v.SeatB)
	}
	return nil
}

func writeRendered(stdout io.Writer, opts *planOptions, chart export.Chart) error {
	renderer, err := export.ForFormat(opts.format)
	if err != nil {
		return err
	}
	payload, err := renderer.Render(chart)
	if err != nil {
		return err
	}
	if opts.out == "" {
		_, err = stdout.Write(payload)
		return err
	}
	return os.WriteFile(opts.out, payload, 0o644)
}

func chartFromPlan(plan *seating.Plan, students []seating.Student) export.Chart {
	chart := export.Chart{
		Title: "Seating chart",
		Rows:  plan.Grid.Rows,
		Cols:  plan.Grid.Cols,
		Seats: make([]export.SeatEntry, 0, len(students)),
	}
	for _, s := range students {
		seat, ok := plan.Assignment[s.ID]
		if !ok {
			continue
		}
		entry := export.SeatEntry{StudentID: s.ID, Gender: string(s.Gender), Row: seat.Row, Col: seat.Col}
		for _, tag := range s.Special {
			entry.Special = append(entry.Special, string(tag))
		}
		chart.Seats = append(chart.Seats, entry)
	}
	for _, v := range plan.Violations {
		chart.Notes = append(chart.Notes, fmt.Sprintf("Students %d and %d sit next to each other at %s and %s",
			v.Pair.A, v.Pair.B, v.SeatA, v.SeatB))
	}
	return chart
}

// runToken issues a bearer token signed with the configured JWT secret, for
// calling the API while ENABLE_SEATING_AUTH is on.
func runToken(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("seatplan token", pflag.ContinueOnError)
	user := fs.String("user", "", "user id placed in the token")
	role := fs.String("role", string(models.RoleTeacher), "role: SUPERADMIN, ADMIN or TEACHER")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("--user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})
	token, expiresAt, err := tokens.IssueToken(*user, models.UserRole(strings.ToUpper(*role)))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\nexpires: %s\n", token, expiresAt.UTC().Format(time.RFC3339))
	return err
}
