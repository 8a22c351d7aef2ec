package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/integrity"
	"github.com/spigell/interview-guard/internal/logger"
)

const (
	PromptBack      = "back"
	PromptAnomalies = "Show anomaly timeline"
	PromptDump      = "Dump record to file"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Browse the stored monitoring record of an application",
	Run: func(cmd *cobra.Command, _ []string) {
		runReport(cmd)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringP("user", "u", "", "candidate user id")
	reportCmd.Flags().String("job", "", "job id of the application")
	reportCmd.Flags().Bool("raw", false, "print the record as JSON and exit")

	reportCmd.MarkFlagRequired("user")
	reportCmd.MarkFlagRequired("job")
}

func runReport(cmd *cobra.Command) {
	ctx := context.Background()

	lg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		lg.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		lg.Fatal("config is required")
	}

	applications, _, err := newStores(config)
	if err != nil {
		lg.Fatal("building stores", zap.Error(err))
	}
	defer applications.Close()

	userID, jobID := flagString(cmd, "user"), flagString(cmd, "job")
	rec, err := applications.LoadMonitoringState(ctx, userID, jobID)
	if err != nil {
		lg.Fatal("loading the monitoring record", zap.Error(err))
	}
	if rec == nil {
		lg.Info("exiting", zap.String("reason", "no monitoring record for application"),
			zap.String(logger.FieldUser, userID), zap.String(logger.FieldJob, jobID))
		return
	}

	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		pretty, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(pretty))
		return
	}

	printSummary(lg, *rec)

	if err := browseRedFlags(lg, rec); err != nil && !errors.Is(err, promptui.ErrInterrupt) {
		lg.Fatal("exiting", zap.Error(err))
	}
}

// browseRedFlags lets the operator step through red flags until back is chosen.
func browseRedFlags(lg *zap.Logger, rec *integrity.Record) error {
	for {
		items := redFlagLabels(rec)
		items = append(items, PromptAnomalies, PromptDump, PromptBack)

		flagPrompt := promptui.Select{
			Label: fmt.Sprintf("Red flags (%d), choose one and press ENTER", len(rec.RedFlags)),
			Items: items,
			Size:  10,
		}

		idx, selected, err := flagPrompt.Run()
		if err != nil {
			return err
		}

		switch selected {
		case PromptBack:
			return nil
		case PromptAnomalies:
			for _, line := range anomalyTimeline(rec) {
				fmt.Println(line)
			}
		case PromptDump:
			filename, err := dumpRecord(rec)
			if err != nil {
				return fmt.Errorf("dump record to file: %w", err)
			}
			lg.Info("dumping record to file", zap.String("filename", filename))
		default:
			flag := rec.RedFlags[idx]
			pretty, _ := json.MarshalIndent(flag, "", "  ")
			fmt.Println(string(pretty))
		}
	}
}

func redFlagLabels(rec *integrity.Record) []string {
	labels := make([]string, 0, len(rec.RedFlags))
	for _, f := range rec.RedFlags {
		labels = append(labels, fmt.Sprintf("%s [%s] %s / %s",
			offset(rec.StartedAt, f.Timestamp), f.Severity, f.Type, f.Details,
		))
	}
	return labels
}

func anomalyTimeline(rec *integrity.Record) []string {
	lines := make([]string, 0, len(rec.Anomalies))
	for _, a := range rec.Anomalies {
		lines = append(lines, fmt.Sprintf("%s %-8s %-12s %s: %s",
			offset(rec.StartedAt, a.Timestamp), a.Severity, a.Category, a.Type, a.Details,
		))
	}
	return lines
}

func offset(start, at time.Time) string {
	if start.IsZero() || at.Before(start) {
		return "+00:00"
	}
	d := at.Sub(start).Round(time.Second)
	return fmt.Sprintf("+%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func dumpRecord(rec *integrity.Record) (string, error) {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(rec.UserID + "-" + rec.JobID)
	f, err := os.CreateTemp("", app+"-"+name+"-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return "", err
	}
	return f.Name(), nil
}
