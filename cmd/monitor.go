package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/integrity"
	"github.com/spigell/interview-guard/internal/logger"
	"github.com/spigell/interview-guard/internal/media"
	"github.com/spigell/interview-guard/internal/monitor"
	"github.com/spigell/interview-guard/internal/utils"
)

const stopTimeout = 2 * time.Minute

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor one interview session from a capture directory",
	Run: func(cmd *cobra.Command, _ []string) {
		runMonitor(cmd)
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringP("user", "u", "", "candidate user id")
	monitorCmd.Flags().String("job", "", "job id of the application")
	monitorCmd.Flags().String("candidate", "", "candidate display name")
	monitorCmd.Flags().String("session", "", "session id (random when empty)")
	monitorCmd.Flags().String("capture-dir", "", "directory with camera frames to replay")
	monitorCmd.Flags().String("audio", "", "WAV file to replay as microphone input")
	monitorCmd.Flags().Duration("duration", 0, "stop after this long (0 waits for interrupt)")

	monitorCmd.MarkFlagRequired("user")
	monitorCmd.MarkFlagRequired("job")
	monitorCmd.MarkFlagRequired("capture-dir")
}

func runMonitor(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	lg.Info("starting the interview-guard", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config.Monitor.WithDefaults(), "", "  ")
	lg.Debug(fmt.Sprintf("starting with monitor config: \n %s", pretty))

	verifier, err := newBiometric(config.Biometric, lg)
	if err != nil {
		lg.Fatal("building the biometric client", zap.Error(err))
	}

	applications, enrollments, err := newStores(config)
	if err != nil {
		lg.Fatal("building stores", zap.Error(err))
	}
	defer applications.Close()

	notifier, sinks, err := newNotifier(config.Notify, lg)
	if err != nil {
		lg.Fatal("building notifier", zap.Error(err))
	}
	defer sinks.Close()

	reviewer, err := newReviewer(ctx, config.Reviewer, lg)
	if err != nil {
		lg.Warn("skipping reviewer notes", zap.Error(err))
	}

	manager := monitor.NewManager(config.Monitor, monitor.Deps{
		Verifier:   verifier,
		Enrollment: enrollments,
		Store:      applications,
		Notifier:   notifier,
		Reviewer:   reviewer,
		Logger:     lg,
	})

	flags := cmd.Flags()
	info := integrity.SessionInfo{
		SessionID:     flagString(cmd, "session"),
		UserID:        flagString(cmd, "user"),
		JobID:         flagString(cmd, "job"),
		CandidateName: flagString(cmd, "candidate"),
	}
	src := media.NewDirSource(flagString(cmd, "capture-dir"), flagString(cmd, "audio"))

	session, err := manager.Start(ctx, info, src)
	if err != nil {
		lg.Fatal("starting the session", zap.Error(err))
	}

	lg.Info("monitoring started", zap.String(logger.FieldSession, session.ID()))

	duration, _ := flags.GetDuration("duration")
	waitForEnd(ctx, session, duration)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	rec, err := session.Stop(stopCtx)
	if err != nil {
		lg.Error("final save failed", zap.Error(err))
	}

	printSummary(lg, rec)
}

// waitForEnd blocks until an interrupt, the duration elapses or the session
// ends on its own.
func waitForEnd(ctx context.Context, session *monitor.Session, duration time.Duration) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-session.Done():
			cancel()
		case <-waitCtx.Done():
		}
	}()

	if duration <= 0 {
		<-waitCtx.Done()
		return
	}
	_ = utils.WaitFor(waitCtx, duration)
}

func printSummary(lg *zap.Logger, rec integrity.Record) {
	lg.Info("session summary",
		zap.Int("score", rec.Summary.OverallSecurityScore),
		zap.String("risk", string(rec.Summary.RiskLevel)),
		zap.String("integrity", string(rec.Summary.InterviewIntegrity)),
		zap.Int("anomalies", rec.Summary.TotalAnomalies),
		zap.Int("red_flags", rec.Summary.TotalRedFlags),
		zap.Int("person_switches", rec.Summary.PersonSwitches),
		zap.Int64("duration_seconds", rec.Summary.MonitoringDuration),
	)
	if rec.ReviewerNote != "" {
		lg.Info("reviewer note", zap.String("note", rec.ReviewerNote))
	}
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
