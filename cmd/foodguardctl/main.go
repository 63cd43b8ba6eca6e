// Command foodguardctl is a terminal client for the FoodGuard service. It
// shares the local database, and therefore the signed-in session, with the
// web UI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/vbonduro/foodguard/internal/config"
	"github.com/vbonduro/foodguard/internal/db"
	"github.com/vbonduro/foodguard/internal/domain"
	"github.com/vbonduro/foodguard/internal/foodapi"
	"github.com/vbonduro/foodguard/internal/history"
	"github.com/vbonduro/foodguard/internal/logging"
	"github.com/vbonduro/foodguard/internal/photostore/local"
	"github.com/vbonduro/foodguard/internal/seal"
	"github.com/vbonduro/foodguard/internal/service"
	"github.com/vbonduro/foodguard/internal/session"
	"github.com/vbonduro/foodguard/internal/store"
	"github.com/vbonduro/foodguard/internal/summary"
)

const usage = `usage: foodguardctl <command> [flags]

commands:
  login     -email E -password P
  register  -email E -username U -password P -confirm P
  logout
  history   [-json]
  scan      -file PATH [-json]
  scans     [-delete ID]
  summary   [-period weekly|daily|monthly] [-nutrient carbohydrates|fats|sugar]
`

var errUsage = errors.New("invalid usage")

func main() {
	cfg := config.Load()
	if cfg.LogLevel == "info" {
		// Keep the terminal quiet unless asked.
		cfg.LogLevel = "warn"
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		logger.Debug("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		cleanup()
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	session *session.Session
	client  *foodapi.Client
	auth    *service.AuthService
	scans   *service.ScanService
	loc     *time.Location
	out     io.Writer
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	sealer, err := seal.New(cfg.TokenSecret)
	if err != nil {
		return err
	}
	sess := session.New(store.NewCredentialStore(database, sealer))
	if err := sess.Hydrate(ctx); err != nil {
		return err
	}

	loc, err := history.LoadLocation(cfg.DisplayTZ)
	if err != nil {
		return err
	}

	photoStg, err := local.NewLibrary(cfg.PhotoPath)
	if err != nil {
		return err
	}

	// Scans from the terminal always use the FoodGuard service for prediction.
	client := foodapi.NewClient(cfg.APIURL, cfg.HTTPTimeout, sess)
	a := &app{
		cfg:     cfg,
		session: sess,
		client:  client,
		auth:    service.NewAuthService(client, sess, slog.Default()),
		scans:   service.NewScanService(store.NewScanStore(database), client, photoStg, slog.Default()),
		loc:     loc,
		out:     out,
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "register":
		return a.register(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "history":
		return a.history(ctx, rest)
	case "scan":
		return a.scan(ctx, rest)
	case "scans":
		return a.listScans(ctx, rest)
	case "summary":
		return a.summary(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("%w: -email and -password are required", errUsage)
	}

	if err := a.auth.Login(ctx, *email, *password); err != nil {
		return alertError(err)
	}
	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	in := service.RegisterInput{}
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Username, "username", "", "display name")
	fs.StringVar(&in.Password, "password", "", "password")
	fs.StringVar(&in.ConfirmPassword, "confirm", "", "password again")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := a.auth.Register(ctx, in); err != nil {
		return alertError(err)
	}
	fmt.Fprintln(a.out, service.MsgRegistrationComplete)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *app) requireLogin() error {
	if !a.session.Authenticated() {
		return errors.New("not logged in, run: foodguardctl login")
	}
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print raw records as JSON")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	view := history.New(a.client, a.loc).Refresh(ctx)
	if view.Err != "" {
		return errors.New(view.Err)
	}

	if *asJSON {
		records := []domain.NutritionRecord{}
		if view.Highlighted != nil {
			records = append(records, view.Highlighted.Record)
		}
		for _, e := range view.Remaining {
			records = append(records, e.Record)
		}
		return writeJSON(a.out, records)
	}

	if view.Highlighted == nil {
		fmt.Fprintln(a.out, "No meals recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tNAME\tCARBO\tFATS\tSUGAR\tTIME")
	printEntry(tw, "*", *view.Highlighted)
	for _, e := range view.Remaining {
		printEntry(tw, "", e)
	}
	return tw.Flush()
}

func printEntry(w io.Writer, marker string, e history.Entry) {
	fmt.Fprintf(w, "%s\t%s\t%g g\t%g g\t%g g\t%s\n", marker, e.Record.Name, e.Carbohydrates, e.Fats, e.Sugar, e.Time)
}

func (a *app) scan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	file := fs.String("file", "", "path to a food photo")
	asJSON := fs.Bool("json", false, "print the record as JSON")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *file == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	record, err := a.scans.ScanFile(ctx, *file)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(a.out, record)
	}

	when, _ := history.FormatTime(record.CreatedAt, a.loc)
	fmt.Fprintf(a.out, "%s (score %d/10)\n", record.Name, record.Score)
	fmt.Fprintf(a.out, "  calories %g kcal, carbo %g g, fats %g g, sugar %g g, protein %g g\n",
		domain.Amount(record.Calorie), domain.Amount(record.Carbohydrates), domain.Amount(record.Fats),
		domain.Amount(record.Sugar), domain.Amount(record.Protein))
	if record.Recommendation != "" {
		fmt.Fprintf(a.out, "  %s\n", record.Recommendation)
	}
	if when != "" {
		fmt.Fprintf(a.out, "  %s\n", when)
	}
	return nil
}

func (a *app) listScans(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scans", flag.ContinueOnError)
	deleteID := fs.String("delete", "", "remove the scan with this ID and its photo")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *deleteID != "" {
		if err := a.scans.DeleteScan(ctx, *deleteID); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Scan deleted.")
		return nil
	}

	scans, err := a.scans.ListScans(ctx)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		fmt.Fprintln(a.out, "No scans yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tFOOD\tPHOTO\tTAKEN")
	for _, sc := range scans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", sc.ID, sc.Status, sc.FoodName, sc.StorageKey, sc.CreatedAt.In(a.loc).Format("2 Jan 15:04"))
	}
	return tw.Flush()
}

func (a *app) summary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	periodFlag := fs.String("period", "weekly", "daily, weekly or monthly")
	nutrientFlag := fs.String("nutrient", "carbohydrates", "carbohydrates, fats or sugar")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	period, err := summary.ParsePeriod(*periodFlag)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	nutrient, err := summary.ParseNutrient(*nutrientFlag)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	records, err := a.client.FetchNutritions(ctx)
	if err != nil {
		return err
	}
	s := summary.Compute(records, period, nutrient, time.Now(), a.loc, a.cfg.SugarLimit)

	fmt.Fprintf(a.out, "%s %s (%d meals)\n", s.Period, s.Nutrient, s.Count)
	for _, b := range s.Bars {
		fmt.Fprintf(a.out, "  %-5s %6.1f g\n", b.Label, b.Value)
	}
	fmt.Fprintf(a.out, "totals: carbo %.1f g, fats %.1f g, sugar %.1f g, %.0f kcal\n",
		s.Totals.Carbohydrates, s.Totals.Fats, s.Totals.Sugar, s.Totals.Calorie)
	fmt.Fprintf(a.out, "sugar today: %.1f of %.0f g", s.SugarToday, s.SugarLimit)
	if s.OverSugarLimit() {
		fmt.Fprint(a.out, " (over the limit)")
	}
	fmt.Fprintln(a.out)
	return nil
}

func alertError(err error) error {
	var ae *service.AlertError
	if errors.As(err, &ae) {
		return fmt.Errorf("%s: %s", ae.Title, ae.Message)
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
