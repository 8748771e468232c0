package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"pix-remittance/internal/auth"
	remittanceapp "pix-remittance/internal/remittance/application"
	remittance "pix-remittance/internal/remittance/domain"
	"pix-remittance/internal/remittance/infrastructure/file"
	"pix-remittance/internal/remittance/infrastructure/memory"
	remittancerepo "pix-remittance/internal/remittance/infrastructure/postgres"
	"pix-remittance/internal/remittance/infrastructure/spreadsheet"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type options struct {
	input       string
	configPath  string
	counterPath string
	outDir      string
	mark        bool
	markOut     string
	mintRole    string
	tenantID    string
	tokenTTL    time.Duration
}

type jsonPayment struct {
	BeneficiaryName string          `json:"beneficiary_name"`
	Amount          decimal.Decimal `json:"amount"`
	DueDate         string          `json:"due_date"`
	Document        string          `json:"document"`
	Key             string          `json:"key"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("remittance", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.input, "input", "i", "", "payment queue (.xlsx) or payment list (.json)")
	flagSet.StringVarP(&opts.configPath, "config", "c", os.Getenv("REMITTANCE_CONFIG"), "originator profile (YAML)")
	flagSet.StringVar(&opts.counterPath, "counter", "", "sequence store file (overrides the profile)")
	flagSet.StringVarP(&opts.outDir, "out", "o", ".", "directory for the generated REMnnnnnn.txt")
	flagSet.BoolVar(&opts.mark, "mark", false, "write the NSA back into the workbook status column")
	flagSet.StringVar(&opts.markOut, "mark-out", "", "path of the marked workbook (default: overwrite --input)")
	flagSet.StringVar(&opts.mintRole, "mint-token", "", "print an API token for this role (viewer, operator, admin) and exit")
	flagSet.StringVar(&opts.tenantID, "tenant", getenvDefault("TENANT_ID", "tenant-demo"), "tenant id for --mint-token")
	flagSet.DurationVar(&opts.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of the minted token")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}

	if opts.mintRole != "" {
		return mintToken(opts)
	}
	if opts.input == "" {
		return errors.New("--input is required")
	}
	return generate(context.Background(), opts)
}

func generate(ctx context.Context, opts options) error {
	cfg, err := remittanceapp.LoadConfigFile(opts.configPath)
	if err != nil {
		return err
	}
	if opts.counterPath != "" {
		cfg.Counter = remittanceapp.CounterFile
		cfg.CounterPath = opts.counterPath
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var (
		payments []remittance.PaymentInstruction
		upstream remittance.Diagnostics
		queue    *spreadsheet.Queue
	)
	switch strings.ToLower(filepath.Ext(opts.input)) {
	case ".xlsx":
		queue, err = spreadsheet.ReadQueue(data)
		if err != nil {
			return err
		}
		payments, upstream = queue.Payments(), queue.Diagnostics
		fmt.Printf("queue %s: %d pix, %d boleto, %d not to pay\n", queue.Sheet, len(queue.PIX), len(queue.Boleto), queue.NotToPay)
		for _, row := range queue.Boleto {
			fmt.Printf("  sheet row %d: boleto for %s left for manual payment\n", row.SheetRow, row.Payment.BeneficiaryName)
		}
	case ".json":
		payments, err = decodeJSON(data)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported input %q: want .xlsx or .json", opts.input)
	}

	counter, closeCounter, err := openCounter(cfg)
	if err != nil {
		return err
	}
	defer closeCounter()

	encoder, err := remittance.NewEncoder(counter, remittance.WithLocation(loc))
	if err != nil {
		return err
	}
	encoded, err := encoder.Encode(ctx, payments, cfg.Originator)
	if err != nil {
		return err
	}
	if encoded == nil {
		fmt.Println("no pix payments to remit; sequence unchanged")
		return nil
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	outPath := filepath.Join(opts.outDir, encoded.FileName())
	if err := writeNew(outPath, encoded.Content); err != nil {
		return err
	}
	fmt.Printf("wrote %s: nsa=%d payments=%d records=%d total=%s blake3=%s\n",
		outPath, encoded.Sequence, encoded.PaymentCount, encoded.RecordCount,
		decimal.New(encoded.TotalCents, -2).StringFixed(2), remittanceapp.Digest(encoded.Content))

	diags := append(upstream, encoded.Diagnostics...)
	for _, d := range diags {
		row := fmt.Sprintf("payment %d", d.Row)
		if queue != nil && d.Row >= 1 && d.Row <= len(queue.PIX) {
			row = fmt.Sprintf("sheet row %d", queue.PIX[d.Row-1].SheetRow)
		}
		fmt.Printf("  %s: %s: %s", row, d.Field, d.Reason)
		if d.Fallback != "" {
			fmt.Printf(" (using %q)", d.Fallback)
		}
		fmt.Println()
	}

	if opts.mark && queue != nil {
		marked, err := spreadsheet.MarkRemitted(data, queue.SheetRows(), encoded.Sequence)
		if err != nil {
			return err
		}
		target := opts.markOut
		if target == "" {
			target = opts.input
		}
		if err := os.WriteFile(target, marked, 0o644); err != nil {
			return fmt.Errorf("write marked workbook: %w", err)
		}
		fmt.Printf("marked %d rows in %s\n", len(queue.PIX), target)
	}
	return nil
}

func openCounter(cfg remittanceapp.Config) (remittance.SequenceCounter, func(), error) {
	switch cfg.Counter {
	case remittanceapp.CounterPostgres:
		dsn := getenvDefault("DATABASE_URL", os.Getenv("PG_DSN"))
		if dsn == "" {
			return nil, nil, errors.New("DATABASE_URL or PG_DSN is required for the postgres counter")
		}
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, nil, err
		}
		name := getenvDefault("REMITTANCE_SEQUENCE_NAME", "nsa")
		return remittancerepo.NewSequenceCounter(db, remittancerepo.WithSequenceName(name)), func() { _ = db.Close() }, nil
	case remittanceapp.CounterMemory:
		return memory.NewSequenceCounter(0), func() {}, nil
	default:
		counter, err := file.NewSequenceCounter(cfg.CounterPath)
		if err != nil {
			return nil, nil, err
		}
		return counter, func() {}, nil
	}
}

func decodeJSON(data []byte) ([]remittance.PaymentInstruction, error) {
	var items []jsonPayment
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode payments: %w", err)
	}
	payments := make([]remittance.PaymentInstruction, 0, len(items))
	for _, item := range items {
		due, _ := remittance.ParseDate(item.DueDate)
		payments = append(payments, remittance.PaymentInstruction{
			BeneficiaryName: item.BeneficiaryName,
			Amount:          item.Amount,
			DueDate:         due,
			Document:        item.Document,
			Key:             item.Key,
		})
	}
	return payments, nil
}

// writeNew refuses to overwrite an existing remittance file.
func writeNew(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func mintToken(opts options) error {
	secret := getenvDefault("AUTH_JWT_SECRET", os.Getenv("JWT_SECRET"))
	role, ok := auth.NormalizeRole(opts.mintRole)
	if !ok {
		return fmt.Errorf("unknown role %q", opts.mintRole)
	}
	token, err := auth.SignJWT([]byte(secret), opts.tenantID, role, "remittance-cli", opts.tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `remittance: build a CNAB240 PIX remittance file from a payment queue.

Reads the to-pay rows of an XLSX queue (or a JSON list of payments), takes
the next file sequence number (NSA) and writes REMnnnnnn.txt to --out.
Degraded fields are printed per row; the file is still produced.

Usage:
  remittance --input fila.xlsx --config profile.yaml [--out dir] [--mark]
  remittance --mint-token operator --tenant tenant-a

Flags:
%s`, flagSet.FlagUsages())
}
