package commands

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kabupicks/internal/ingest"
	"github.com/wonny/kabupicks/internal/store"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample fixtures and build the first snapshot",
	Long: `Loads the sample fixtures (symbols.csv, daily_prices.csv, events.csv,
news.json) into PostgreSQL, computes tape metrics, runs every detection
rule and builds the pick snapshot.

Example:
  go run ./cmd/picks seed
  go run ./cmd/picks seed --dir data/sample`,
	RunE: runSeed,
}

var seedDir string

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedDir, "dir", "data/sample", "fixture directory")
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	batch, err := loadFixtures(seedDir)
	if err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := a.ingest.Ingest(ctx, batch)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	fmt.Printf("Seeded %d symbols, %d prices, %d features, %d events\n",
		result.Symbols, result.Prices, result.Features, result.Events)
	fmt.Printf("Snapshot built for %s: %d picks\n", result.Date, result.PicksCount)
	return nil
}

func loadFixtures(dir string) (ingest.Batch, error) {
	var batch ingest.Batch
	var err error

	if batch.Symbols, err = loadSymbolsCSV(filepath.Join(dir, "symbols.csv")); err != nil {
		return batch, err
	}
	if batch.Prices, err = loadPricesCSV(filepath.Join(dir, "daily_prices.csv")); err != nil {
		return batch, err
	}
	if batch.Disclosures, batch.Earnings, err = loadEventsCSV(filepath.Join(dir, "events.csv")); err != nil {
		return batch, err
	}
	if batch.News, err = loadNewsJSON(filepath.Join(dir, "news.json")); err != nil {
		return batch, err
	}
	return batch, nil
}

// readCSV returns the rows of a CSV file as column-name maps. A missing
// file is not an error: fixtures are optional individually.
func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func loadSymbolsCSV(path string) ([]store.Symbol, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	symbols := make([]store.Symbol, 0, len(rows))
	for _, row := range rows {
		if row["code"] == "" {
			continue
		}
		s := store.Symbol{Code: row["code"], Name: row["name"]}
		if s.Name == "" {
			s.Name = s.Code
		}
		if sector := row["sector"]; sector != "" {
			s.Sector = &sector
		}
		symbols = append(symbols, s)
	}
	return symbols, nil
}

func loadPricesCSV(path string) ([]store.DailyPrice, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	prices := make([]store.DailyPrice, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row["date"])
		if err != nil {
			return nil, fmt.Errorf("bad price date %q: %w", row["date"], err)
		}

		p := store.DailyPrice{Code: row["code"], Date: date}
		if p.Open, err = strconv.ParseFloat(row["open"], 64); err != nil {
			return nil, fmt.Errorf("bad open %q: %w", row["open"], err)
		}
		if p.High, err = strconv.ParseFloat(row["high"], 64); err != nil {
			return nil, fmt.Errorf("bad high %q: %w", row["high"], err)
		}
		if p.Low, err = strconv.ParseFloat(row["low"], 64); err != nil {
			return nil, fmt.Errorf("bad low %q: %w", row["low"], err)
		}
		if p.Close, err = strconv.ParseFloat(row["close"], 64); err != nil {
			return nil, fmt.Errorf("bad close %q: %w", row["close"], err)
		}
		if p.Volume, err = strconv.ParseInt(row["volume"], 10, 64); err != nil {
			return nil, fmt.Errorf("bad volume %q: %w", row["volume"], err)
		}
		if raw := row["vwap"]; raw != "" {
			vwap, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("bad vwap %q: %w", raw, err)
			}
			p.VWAP = &vwap
		}
		prices = append(prices, p)
	}
	return prices, nil
}

// loadEventsCSV splits the event fixture into timely disclosures and
// earnings summaries by their type column.
func loadEventsCSV(path string) (disclosures, earnings []ingest.Disclosure, err error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}

	for _, row := range rows {
		announcedAt, err := time.Parse(time.RFC3339, row["date"])
		if err != nil {
			if announcedAt, err = time.Parse("2006-01-02", row["date"]); err != nil {
				return nil, nil, fmt.Errorf("bad event date %q: %w", row["date"], err)
			}
		}

		item := ingest.Disclosure{
			Code:        row["code"],
			Title:       row["title"],
			Summary:     row["summary"],
			AnnouncedAt: announcedAt,
		}

		switch row["type"] {
		case "TDNET":
			item.Source = "tdnet"
			disclosures = append(disclosures, item)
		case "EARNINGS":
			item.Source = "earnings"
			earnings = append(earnings, item)
		}
	}
	return disclosures, earnings, nil
}

func loadNewsJSON(path string) ([]ingest.NewsItem, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var entries []struct {
		Code     string `json:"code"`
		Title    string `json:"title"`
		Summary  string `json:"summary"`
		Date     string `json:"date"`
		Polarity string `json:"polarity"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	items := make([]ingest.NewsItem, 0, len(entries))
	for _, e := range entries {
		if e.Code == "" || e.Title == "" {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, e.Date)
		if err != nil {
			if publishedAt, err = time.Parse("2006-01-02", e.Date); err != nil {
				return nil, fmt.Errorf("bad news date %q: %w", e.Date, err)
			}
		}

		polarity := ingest.Polarity(e.Polarity)
		switch polarity {
		case ingest.PolarityPositive, ingest.PolarityNegative, ingest.PolarityNeutral:
		default:
			polarity = ingest.InferPolarity(e.Title)
		}

		items = append(items, ingest.NewsItem{
			Code:        e.Code,
			Title:       e.Title,
			Summary:     e.Summary,
			PublishedAt: publishedAt,
			Polarity:    polarity,
		})
	}
	return items, nil
}
