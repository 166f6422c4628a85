package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

var (
	debug     = flag.Bool("debug", false, "Additional debug information if set.")
	configDir = flag.String("conf", os.Getenv("HOME")+"/.recledger",
		"Config directory to store recledger configs in.")
	masterFile = flag.String("master", "", "Path to the master transactions CSV. Overrides config.")
	rulesFile  = flag.String("rules", "", "Path to the categorization rules JSON. Overrides config.")
	window     = flag.Int("window", 0, "Days apart a transfer pair may be. Overrides config.")
	tolerance  = flag.Float64("tolerance", 0, "Amount by which a transfer pair may differ. Overrides config.")
	checking   = flag.String("checking", "", "Name of the checking account. Overrides config.")
	venmoCSV   = flag.String("venmo-csv", "", "Venmo activity export for manual linking (venmo subcommand).")
	outFile    = flag.String("out", "", "Output path for the extract subcommand.")
)

// defaultCategories seeds new installs; config.yaml replaces the list.
var defaultCategories = []string{
	"Auto: Gas",
	"Auto: Maintenance",
	"Dining",
	"Entertainment",
	"Groceries",
	"Health: Medical",
	"Health: Pharmacy",
	"Home: Improvement",
	"Home: Supplies",
	"Insurance",
	"Non-Taxable Income: Rewards",
	"Personal Care",
	"Shopping",
	"Subscriptions",
	"Transfer",
	"Travel",
	"Utilities",
}

type config struct {
	MasterPath      string   `yaml:"master_path"`
	RulesPath       string   `yaml:"rules_path"`
	ImportDBPath    string   `yaml:"import_db_path"`
	CheckingAccount string   `yaml:"checking_account"`
	VenmoAccount    string   `yaml:"venmo_account"`
	DateWindowDays  int      `yaml:"date_window_days"`
	AmountTolerance float64  `yaml:"amount_tolerance"`
	BayesThreshold  float64  `yaml:"bayes_threshold"`
	AIBatchSize     int      `yaml:"ai_batch_size"`
	Categories      []string `yaml:"categories"`
	AI              struct {
		Enabled bool   `yaml:"enabled"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
	} `yaml:"ai"`
}

func (c *config) matchConfig() matchConfig {
	return matchConfig{
		DateWindowDays:  c.DateWindowDays,
		AmountTolerance: c.AmountTolerance,
	}
}

// loadConfig reads config.yaml from the conf dir, fills defaults, and lets
// command line flags override individual fields.
func loadConfig() (*config, error) {
	cfg := &config{}
	cpath := path.Join(*configDir, "config.yaml")
	data, err := os.ReadFile(cpath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(errMalformedInput, "config %q: %v", cpath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "read config %q", cpath)
	}

	if len(cfg.MasterPath) == 0 {
		cfg.MasterPath = path.Join(*configDir, "master_transactions.csv")
	}
	if len(cfg.RulesPath) == 0 {
		cfg.RulesPath = path.Join(*configDir, "rules.json")
	}
	if len(cfg.ImportDBPath) == 0 {
		cfg.ImportDBPath = path.Join(*configDir, "imported.db")
	}
	if len(cfg.CheckingAccount) == 0 {
		cfg.CheckingAccount = "US Bank Checking"
	}
	if len(cfg.VenmoAccount) == 0 {
		cfg.VenmoAccount = "Venmo"
	}
	if cfg.DateWindowDays == 0 {
		cfg.DateWindowDays = defaultMatchConfig().DateWindowDays
	}
	if cfg.AmountTolerance == 0 {
		cfg.AmountTolerance = defaultMatchConfig().AmountTolerance
	}
	if cfg.BayesThreshold == 0 {
		cfg.BayesThreshold = 0.9
	}
	if cfg.AIBatchSize == 0 {
		cfg.AIBatchSize = 50
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = defaultCategories
	}
	if len(cfg.AI.APIKey) == 0 {
		cfg.AI.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if len(*masterFile) > 0 {
		cfg.MasterPath = *masterFile
	}
	if len(*rulesFile) > 0 {
		cfg.RulesPath = *rulesFile
	}
	if *window > 0 {
		cfg.DateWindowDays = *window
	}
	if *tolerance > 0 {
		cfg.AmountTolerance = *tolerance
	}
	if len(*checking) > 0 {
		cfg.CheckingAccount = *checking
	}
	return cfg, nil
}

// runMatch is the `match` subcommand: pair unlinked transfer debits with
// credits and stamp both sides with a shared reconciliation id.
func runMatch(cfg *config) error {
	recs, _, err := loadLedger(cfg.MasterPath)
	if err != nil {
		return err
	}
	stats := matchTransfers(recs, cfg.matchConfig())
	fmt.Println(stats.String())

	if stats.UnmatchedDebits+stats.UnmatchedCredits > 0 {
		fmt.Println("\nStill unmatched after this pass:")
		for _, r := range recs {
			if r.Category == categoryTransfer && len(r.ReconciliationID) == 0 {
				printRecord(r)
			}
		}
	}
	if stats.MatchedPairs == 0 {
		fmt.Println("Nothing new to link.")
		return nil
	}
	if err := saveLedger(cfg.MasterPath, recs); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("Linked %d pair(s) and saved %q.\n",
		stats.MatchedPairs, cfg.MasterPath)
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [flags] <command> [args]

Commands:
  import <export.csv>   Normalize a bank or card export and merge it into the master file.
  extract <stmt.pdf>    Pull transactions out of a PDF card statement into a CSV.
  match                 Link transfer debits to credits with shared reconciliation ids.
  venmo                 Link Venmo pass-through payments and withdrawals.
  verify                Check every reconciliation group balances. Exits 2 on failure.
  resolve               Interactively fix reconciliation groups with too many members.
  audit                 Report transfers with no balancing partner, ignoring links.
  checklist             List months per card whose statements look missing.
  sources               Count transactions per imported source file.
  categorize            Categorize uncategorized rows via rules, Bayes, and AI review.
  rules                 List or delete categorization rules.
  purge                 Delete every transaction of one account, with confirmation.

Flags:
`, os.Args[0])
	flag.PrintDefaults()
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*configDir, 0o755); err != nil {
		return errors.Wrapf(err, "create config dir %q", *configDir)
	}

	switch cmd := flag.Arg(0); cmd {
	case "import":
		if flag.NArg() < 2 {
			oerr("import needs an export file argument")
			return errMalformedInput
		}
		return runImport(cfg, flag.Arg(1))
	case "extract":
		if flag.NArg() < 2 {
			oerr("extract needs a PDF statement argument")
			return errMalformedInput
		}
		return runExtract(cfg, flag.Arg(1), *outFile)
	case "match":
		return runMatch(cfg)
	case "venmo":
		return runVenmo(cfg, *venmoCSV)
	case "verify":
		return runVerify(cfg)
	case "resolve":
		return runResolve(cfg)
	case "audit":
		return runAudit(cfg)
	case "checklist":
		return runChecklist(cfg)
	case "sources":
		return runSources(cfg)
	case "categorize":
		return runCategorize(cfg)
	case "rules":
		return runRules(cfg)
	case "purge":
		return runPurge(cfg)
	case "":
		usage()
		return errMalformedInput
	default:
		oerr(fmt.Sprintf("unknown command %q", cmd))
		return errMalformedInput
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	if err := run(); err != nil {
		errc("%v\n", err)
		switch {
		case errors.Is(err, errIntegrity):
			os.Exit(2)
		default:
			os.Exit(1)
		}
	}
}
