package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/interview-guard/internal/monitor"
	"github.com/spigell/interview-guard/internal/notify"
	"github.com/spigell/interview-guard/internal/store"
)

const (
	app = "interview-guard"
)

type Config struct {
	Monitor     monitor.Config              `mapstructure:"monitor"`
	Biometric   *BiometricConfig            `mapstructure:"biometric"`
	Store       *StoreConfig                `mapstructure:"store"`
	Enrollments map[string]store.Enrollment `mapstructure:"enrollments"`
	Notify      *NotifyConfig               `mapstructure:"notify"`
	Reviewer    *ReviewerConfig             `mapstructure:"reviewer"`
}

type BiometricConfig struct {
	URL          string        `mapstructure:"url"`
	APIKey       string        `mapstructure:"api-key"`
	APIKeyFile   string        `mapstructure:"api-key-file"`
	FaceTimeout  time.Duration `mapstructure:"face-timeout"`
	VoiceTimeout time.Duration `mapstructure:"voice-timeout"`
}

type StoreConfig struct {
	Driver           string          `mapstructure:"driver"`
	EnrollmentDriver string          `mapstructure:"enrollment-driver"`
	Redis            *RedisConfig    `mapstructure:"redis"`
	Supabase         *SupabaseConfig `mapstructure:"supabase"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	PasswordFile string        `mapstructure:"password-file"`
	DB           int           `mapstructure:"db"`
	Prefix       string        `mapstructure:"prefix"`
	TTL          time.Duration `mapstructure:"ttl"`
}

type SupabaseConfig struct {
	URL     string `mapstructure:"url"`
	KeyFile string `mapstructure:"key-file"`
}

type NotifyConfig struct {
	Log   bool                `mapstructure:"log"`
	Kafka *notify.KafkaConfig `mapstructure:"kafka"`
}

type ReviewerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-guard watches remote interviews for identity and integrity anomalies",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-guard.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("store.driver", string(store.DriverMemory))
	viper.SetDefault("store.enrollment-driver", string(store.DriverStatic))
	viper.SetDefault("notify.log", true)
}

func initConfig() {
	// Only commands that touch a session need the config file.
	if monitorCmd.CalledAs() == "" && reportCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
