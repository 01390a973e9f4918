package cmd

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "hiring-pipeline"
	envPrefix = "HIRING"
)

type Config struct {
	// Backend is one of memory, gsheets, xlsx, sqlite or postgres.
	Backend    string            `mapstructure:"backend"`
	Sheets     *SheetsConfig     `mapstructure:"sheets"`
	XLSX       *XLSXConfig       `mapstructure:"xlsx"`
	SQL        *SQLConfig        `mapstructure:"sql"`
	Gemini     *GeminiConfig     `mapstructure:"gemini"`
	GetOnBoard *GetOnBoardConfig `mapstructure:"getonboard"`
	TeamTailor *TeamTailorConfig `mapstructure:"teamtailor"`
	Push       *PushConfig       `mapstructure:"push"`
	Server     *ServerConfig     `mapstructure:"server"`
}

type SheetsConfig struct {
	SpreadsheetID     string        `mapstructure:"spreadsheet-id"`
	CredentialsFile   string        `mapstructure:"credentials-file"`
	RequestsPerSecond float64       `mapstructure:"requests-per-second"`
	Burst             int           `mapstructure:"burst"`
	RequestTimeout    time.Duration `mapstructure:"request-timeout"`
}

type XLSXConfig struct {
	Path string `mapstructure:"path"`
}

type SQLConfig struct {
	DSN          string        `mapstructure:"dsn"`
	DSNFile      string        `mapstructure:"dsn-file"`
	QueryTimeout time.Duration `mapstructure:"query-timeout"`
}

type GeminiConfig struct {
	// Backend is "gemini" (API key) or "vertex".
	Backend      string   `mapstructure:"backend"`
	APIKey       string   `mapstructure:"api-key"`
	APIKeyFile   string   `mapstructure:"api-key-file"`
	Project      string   `mapstructure:"project"`
	Location     string   `mapstructure:"location"`
	Model        string   `mapstructure:"model"`
	Temperature  *float32 `mapstructure:"temperature"`
	MaxRetries   int      `mapstructure:"max-retries"`
	MaxLogLength int      `mapstructure:"max-log-length"`
}

type GetOnBoardConfig struct {
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	APIURL    string `mapstructure:"api-url"`
	UserAgent string `mapstructure:"user-agent"`
}

type TeamTailorConfig struct {
	Token      string `mapstructure:"token"`
	TokenFile  string `mapstructure:"token-file"`
	APIURL     string `mapstructure:"api-url"`
	APIVersion string `mapstructure:"api-version"`
	// Jobs maps job_post_id to the TeamTailor job id candidates are
	// applied to.
	Jobs    map[string]string `mapstructure:"jobs"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

type PushConfig struct {
	MinimumFitScore int  `mapstructure:"minimum-fit-score"`
	RetryFailed     bool `mapstructure:"retry-failed"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hiring-pipeline ingests GetOnBoard applicants, evaluates them with Gemini and pushes the good ones to TeamTailor",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hiring-pipeline.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("backend", "b", "", "table backend: memory, gsheets, xlsx, sqlite or postgres")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))

	setDefaults()
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults() {
	viper.SetDefault("backend", backendMemory)
	viper.SetDefault("sheets.spreadsheet-id", "")
	viper.SetDefault("sheets.credentials-file", "")
	viper.SetDefault("sheets.requests-per-second", 0)
	viper.SetDefault("sheets.burst", 0)
	viper.SetDefault("sheets.request-timeout", time.Duration(0))
	viper.SetDefault("xlsx.path", app+".xlsx")
	viper.SetDefault("sql.dsn", "")
	viper.SetDefault("sql.dsn-file", "")
	viper.SetDefault("sql.query-timeout", time.Duration(0))
	viper.SetDefault("gemini.backend", "")
	viper.SetDefault("gemini.api-key", "")
	viper.SetDefault("gemini.api-key-file", "")
	viper.SetDefault("gemini.project", "")
	viper.SetDefault("gemini.location", "")
	viper.SetDefault("gemini.model", "")
	viper.SetDefault("gemini.max-retries", 0)
	viper.SetDefault("gemini.max-log-length", 0)
	viper.SetDefault("getonboard.token", "")
	viper.SetDefault("getonboard.token-file", "")
	viper.SetDefault("getonboard.api-url", "")
	viper.SetDefault("getonboard.user-agent", "")
	viper.SetDefault("teamtailor.token", "")
	viper.SetDefault("teamtailor.token-file", "")
	viper.SetDefault("teamtailor.api-url", "")
	viper.SetDefault("teamtailor.api-version", "")
	viper.SetDefault("teamtailor.timeout", time.Duration(0))
	viper.SetDefault("push.minimum-fit-score", 0)
	viper.SetDefault("push.retry-failed", false)
	viper.SetDefault("server.addr", ":8080")
}

func initConfig() {
	// A missing .env is fine, a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Without an explicit --config the file is optional: everything can
		// come from the environment.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
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
