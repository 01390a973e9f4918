package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/ai/gemini"
	"github.com/spigell/hiring-pipeline/internal/atssync"
	"github.com/spigell/hiring-pipeline/internal/evaluation"
	"github.com/spigell/hiring-pipeline/internal/getonboard"
	"github.com/spigell/hiring-pipeline/internal/logger"
	"github.com/spigell/hiring-pipeline/internal/pipeline"
	"github.com/spigell/hiring-pipeline/internal/prompts"
	"github.com/spigell/hiring-pipeline/internal/secrets"
	"github.com/spigell/hiring-pipeline/internal/store"
	"github.com/spigell/hiring-pipeline/internal/tables"
	"github.com/spigell/hiring-pipeline/internal/tables/gsheets"
	"github.com/spigell/hiring-pipeline/internal/tables/sqldb"
	"github.com/spigell/hiring-pipeline/internal/tables/xlsxfile"
	"github.com/spigell/hiring-pipeline/internal/teamtailor"
)

const (
	backendMemory   = "memory"
	backendSheets   = "gsheets"
	backendXLSX     = "xlsx"
	backendSQLite   = "sqlite"
	backendPostgres = "postgres"
)

// env holds what every command starts with.
type env struct {
	config    *Config
	logger    *zap.Logger
	transport tables.Transport
	store     *store.Store
	closers   []func() error
}

func (e *env) Close() {
	for _, c := range e.closers {
		if err := c(); err != nil {
			e.logger.Warn("closing backend", zap.Error(err))
		}
	}
}

// bootstrap builds the logger, reads the config and opens the table backend.
// Any failure is fatal: commands cannot do anything useful without them.
func bootstrap(ctx context.Context) *env {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	e := &env{config: config, logger: logger}

	transport, closer, err := openTransport(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening table backend", zap.String("backend", config.Backend), zap.Error(err))
	}
	if closer != nil {
		e.closers = append(e.closers, closer)
	}

	e.transport = transport
	e.store = store.New(transport, logger)

	logger.Info("table backend ready", zap.String("backend", config.Backend))
	return e
}

// redacted returns a copy of config without inline secrets, for logging.
func redacted(config *Config) Config {
	c := *config
	if c.Gemini != nil {
		g := *c.Gemini
		g.APIKey = mask(g.APIKey)
		c.Gemini = &g
	}
	if c.GetOnBoard != nil {
		g := *c.GetOnBoard
		g.Token = mask(g.Token)
		c.GetOnBoard = &g
	}
	if c.TeamTailor != nil {
		t := *c.TeamTailor
		t.Token = mask(t.Token)
		c.TeamTailor = &t
	}
	if c.SQL != nil {
		s := *c.SQL
		s.DSN = mask(s.DSN)
		c.SQL = &s
	}
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

func openTransport(ctx context.Context, config *Config, log *zap.Logger) (tables.Transport, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(config.Backend)) {
	case "", backendMemory:
		log.Warn("using the in-memory backend, nothing will be persisted")
		return tables.NewMemory(), nil, nil

	case backendSheets:
		cfg := config.Sheets
		if cfg == nil {
			return nil, nil, fmt.Errorf("sheets section is required for the %s backend", backendSheets)
		}

		var credentials []byte
		if cfg.CredentialsFile != "" {
			// Empty credentials fall back to application default credentials.
			secret, err := secrets.Load(secrets.Source{
				Name: "google service account",
				File: cfg.CredentialsFile,
			})
			if err != nil {
				return nil, nil, err
			}
			credentials = []byte(secret)
		}

		transport, err := gsheets.New(ctx, gsheets.Config{
			SpreadsheetID:     cfg.SpreadsheetID,
			CredentialsJSON:   credentials,
			RequestTimeout:    cfg.RequestTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return transport, nil, nil

	case backendXLSX:
		path := app + ".xlsx"
		if config.XLSX != nil && config.XLSX.Path != "" {
			path = config.XLSX.Path
		}

		transport, err := xlsxfile.New(path, log)
		if err != nil {
			return nil, nil, err
		}
		return transport, nil, nil

	case backendSQLite, backendPostgres:
		driver := sqldb.DriverSQLite
		if strings.EqualFold(config.Backend, backendPostgres) {
			driver = sqldb.DriverPostgres
		}

		cfg := config.SQL
		if cfg == nil {
			cfg = &SQLConfig{}
		}

		dsn := cfg.DSN
		if driver == sqldb.DriverSQLite && dsn == "" && cfg.DSNFile == "" {
			dsn = app + ".db"
		}
		dsn, err := secrets.Load(secrets.Source{
			Name:  driver + " dsn",
			Value: dsn,
			File:  cfg.DSNFile,
			Env:   "DATABASE_URL",
		})
		if err != nil {
			return nil, nil, err
		}

		db, err := sqldb.Open(ctx, sqldb.Config{
			Driver:       driver,
			DSN:          dsn,
			QueryTimeout: cfg.QueryTimeout,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", config.Backend)
	}
}

// newPipeline wires every stage that is configured. Stages without
// credentials stay nil, and calling them fails with a configuration error
// naming what is missing.
func newPipeline(ctx context.Context, e *env) *pipeline.Pipeline {
	log := e.logger
	resolver := prompts.NewResolver(e.store)

	deps := pipeline.Deps{
		Store:    e.store,
		Resolver: resolver,
		Logger:   log,
	}

	source, err := newSource(e.config.GetOnBoard, log)
	if err != nil {
		log.Warn("ingestion is disabled", zap.Error(err))
	} else {
		deps.Source = source
	}

	evaluator, err := newEvaluator(ctx, e, resolver)
	if err != nil {
		log.Warn("evaluation is disabled", zap.Error(err))
	} else {
		deps.Evaluator = evaluator
	}

	ats, err := newATS(e.config.TeamTailor, log)
	if err != nil {
		log.Warn("pushing to teamtailor is disabled", zap.Error(err))
	} else {
		deps.Sync = atssync.New(e.store, ats, log)
	}

	return pipeline.New(deps)
}

func newSource(cfg *GetOnBoardConfig, log *zap.Logger) (*getonboard.Client, error) {
	if cfg == nil {
		cfg = &GetOnBoardConfig{}
	}

	token, err := secrets.Load(secrets.Source{
		Name:  "getonboard token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
		Env:   "GETONBOARD_API_TOKEN",
	})
	if err != nil {
		return nil, err
	}

	client := getonboard.New(log, token)
	if cfg.APIURL != "" {
		client.APIURL = strings.TrimRight(cfg.APIURL, "/")
	}
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	return client, nil
}

func newEvaluator(ctx context.Context, e *env, resolver *prompts.Resolver) (*evaluation.Evaluator, error) {
	cfg := e.config.Gemini
	if cfg == nil {
		cfg = &GeminiConfig{}
	}

	genCfg := gemini.Config{
		Backend:     cfg.Backend,
		Project:     cfg.Project,
		Location:    cfg.Location,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxRetries:  cfg.MaxRetries,
	}

	if !strings.EqualFold(strings.TrimSpace(cfg.Backend), gemini.BackendVertexAI) {
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		genCfg.APIKey = apiKey
	}

	generator, err := gemini.NewGenerator(ctx, genCfg, e.logger)
	if err != nil {
		return nil, fmt.Errorf("building gemini generator: %w", err)
	}

	assessor := gemini.NewAssessor(generator, logger.WithCommonFields(e.logger, "gemini", generator.Model()), cfg.MaxLogLength)
	recorder := evaluation.NewRecorder(e.store, e.logger)

	return evaluation.NewEvaluator(e.store, resolver, assessor, recorder, e.logger), nil
}

func newATS(cfg *TeamTailorConfig, log *zap.Logger) (*teamtailor.Client, error) {
	if cfg == nil {
		cfg = &TeamTailorConfig{}
	}

	token, err := secrets.Load(secrets.Source{
		Name:  "teamtailor token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
		Env:   "TEAMTAILOR_API_TOKEN",
	})
	if err != nil {
		return nil, err
	}

	return teamtailor.New(teamtailor.Config{
		Token:      token,
		APIURL:     cfg.APIURL,
		APIVersion: cfg.APIVersion,
		Jobs:       cfg.Jobs,
		Timeout:    cfg.Timeout,
	}, log), nil
}

// pushDefaults returns the configured push selection, if any.
func pushDefaults(config *Config) PushConfig {
	if config.Push == nil {
		return PushConfig{}
	}
	return *config.Push
}

// report logs v as indented JSON under msg.
func report(log *zap.Logger, msg string, v any) {
	// do not bother error, summaries always marshal
	pretty, _ := json.MarshalIndent(v, "", "  ")
	log.Info(fmt.Sprintf("%s: \n %s", msg, pretty))
}
