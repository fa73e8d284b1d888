package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"ar-reconciliation-engine/cmd/arrecon/config"
	"ar-reconciliation-engine/internal/engine"
	"ar-reconciliation-engine/internal/models"
	"ar-reconciliation-engine/internal/parsers"
	"ar-reconciliation-engine/internal/reporter"
	"ar-reconciliation-engine/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	requestFile   string
	paymentsFile  string
	openItemsFile string
	outputFormat  string
	outputFile    string
	relaxed       bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match payments against open invoice items",
	Long: `Reconcile matches a batch of incoming customer payments against open
invoice items and classifies every match group as high confidence,
needing human review, or no match.

Input is either a single JSON request document, or a pair of CSV
exports (payments and open items).

Examples:
  # Reconcile a staged JSON request
  arrecon reconcile --request-file request.json

  # Reconcile CSV exports and write a JSON report
  arrecon reconcile --payments-file payments.csv --open-items-file items.csv \
    --output-format json --output-file report.json

  # Relaxed tolerances for exploratory runs against messy data
  arrecon reconcile --request-file request.json --relaxed`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Input flags
	reconcileCmd.Flags().StringVarP(&requestFile, "request-file", "r", "", "path to a JSON reconciliation request")
	reconcileCmd.Flags().StringVarP(&paymentsFile, "payments-file", "p", "", "path to a payments CSV export")
	reconcileCmd.Flags().StringVarP(&openItemsFile, "open-items-file", "i", "", "path to an open items CSV export")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Matching flags
	reconcileCmd.Flags().BoolVar(&relaxed, "relaxed", false, "widen amount tolerances for exploratory matching")

	// Bind flags to viper
	viper.BindPFlag("request-file", reconcileCmd.Flags().Lookup("request-file"))
	viper.BindPFlag("payments-file", reconcileCmd.Flags().Lookup("payments-file"))
	viper.BindPFlag("open-items-file", reconcileCmd.Flags().Lookup("open-items-file"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("relaxed", reconcileCmd.Flags().Lookup("relaxed"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	requestFile = viper.GetString("request-file")
	paymentsFile = viper.GetString("payments-file")
	openItemsFile = viper.GetString("open-items-file")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	relaxed = viper.GetBool("relaxed")

	// Exactly one input mode: a request document, or both CSV exports
	if requestFile == "" && paymentsFile == "" && openItemsFile == "" {
		return fmt.Errorf("either request-file or payments-file and open-items-file are required")
	}
	if requestFile != "" && (paymentsFile != "" || openItemsFile != "") {
		return fmt.Errorf("request-file cannot be combined with payments-file or open-items-file")
	}
	if requestFile == "" && (paymentsFile == "" || openItemsFile == "") {
		return fmt.Errorf("payments-file and open-items-file must be provided together")
	}

	if requestFile != "" {
		if err := validateFileExists(requestFile, "request file"); err != nil {
			return err
		}
	} else {
		if err := validateFileExists(paymentsFile, "payments file"); err != nil {
			return err
		}
		if err := validateFileExists(openItemsFile, "open items file"); err != nil {
			return err
		}
	}

	// Validate output format
	if !reporter.OutputFormat(outputFormat).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		if requestFile != "" {
			fmt.Fprintf(os.Stderr, "Request file: %s\n", requestFile)
		} else {
			fmt.Fprintf(os.Stderr, "Payments file: %s\n", paymentsFile)
			fmt.Fprintf(os.Stderr, "Open items file: %s\n", openItemsFile)
		}
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	log, err := logger.NewLogger(config.CreateLoggerConfig(viper.GetBool("verbose")))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	// Load input
	request, err := loadRequest()
	if err != nil {
		return err
	}

	// Run the matching pipeline
	eng := engine.New(config.CreateEngineConfig(relaxed), log)
	response, err := eng.Reconcile(request)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	// Generate report
	reportConfig := config.CreateReportConfig(outputFormat)
	reportGenerator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	// Determine output destination
	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := reportGenerator.GenerateReport(response, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if viper.GetBool("verbose") {
		s := response.Summary
		fmt.Fprintf(os.Stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Processed %d payments and %d open items.\n",
			s.TotalPaymentsProcessed, s.TotalInvoicesProcessed)
		fmt.Fprintf(os.Stderr, "High confidence: %d payments, review: %d payments, unmatched: %d payments / %d invoices.\n",
			s.HighConfidencePayments, s.HitlReviewPayments, s.NoMatchPayments, s.NoMatchInvoices)
	}

	return nil
}

// loadRequest builds the reconciliation request from whichever input
// mode the flags selected.
func loadRequest() (*models.ReconciliationRequest, error) {
	if requestFile != "" {
		return parsers.LoadRequestFile(requestFile)
	}

	payments, err := parsers.LoadPaymentsFile(paymentsFile, config.CreatePaymentsFileConfig())
	if err != nil {
		return nil, err
	}

	openItems, err := parsers.LoadOpenItemsFile(openItemsFile, config.CreateOpenItemsFileConfig())
	if err != nil {
		return nil, err
	}

	request := &models.ReconciliationRequest{
		Payments:  payments,
		OpenItems: openItems,
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	return request, nil
}
