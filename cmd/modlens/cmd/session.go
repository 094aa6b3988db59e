package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dbsmedya/modlens/internal/config"
	"github.com/dbsmedya/modlens/internal/database"
	"github.com/dbsmedya/modlens/internal/introspect"
	"github.com/dbsmedya/modlens/internal/logger"
	"github.com/dbsmedya/modlens/internal/schema"
	"github.com/dbsmedya/modlens/internal/simulate"
	"github.com/dbsmedya/modlens/internal/verifier"
)

// session is the state shared by the commands: configuration, logger, the
// schema model and the variant connections.
type session struct {
	cfg   *config.Config
	log   *logger.Logger
	model *schema.Model
	conns *database.Manager
}

// loadConfig reads the config file and applies CLI overrides. A missing
// default config file is not an error; defaults plus flags are used.
func loadConfig() (*config.Config, error) {
	configFile := GetConfigFile()

	var cfg *config.Config
	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
		cfg = config.DefaultConfig()
	} else {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.Sample, overrides.VerifyRollback)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession loads the configuration, introspects the sample database and
// builds the model. Variant connections are opened lazily by the manager.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	model, err := loadModel(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:   cfg,
		log:   log,
		model: model,
		conns: database.NewManager(cfg, log),
	}, nil
}

func loadModel(ctx context.Context, cfg *config.Config, log *logger.Logger) (*schema.Model, error) {
	db, err := database.OpenSample(ctx, cfg.Schema.Sample, cfg.Simulation.BusyTimeoutMS)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample database: %w", err)
	}
	defer db.Close()

	in, err := introspect.New(db,
		introspect.WithSentinel(cfg.Schema.SentinelTable),
		introspect.WithBooleanInference(cfg.Schema.InferBooleans),
		introspect.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	info, err := in.Introspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect %s: %w", cfg.Schema.Sample, err)
	}

	model, err := schema.New(info)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema model: %w", err)
	}
	for _, r := range model.Rejected() {
		log.Warnw("Foreign key dropped", "fk", r.ForeignKey.String(), "reason", r.Reason)
	}
	return model, nil
}

// simulator builds a simulator over the variant connections, verifying the
// rollback when configured to.
func (s *session) simulator() (*simulate.Simulator, error) {
	opts := []simulate.Option{simulate.WithLogger(s.log)}
	if s.cfg.Simulation.VerifyRollback {
		method, err := verifier.ParseMethod(s.cfg.Simulation.VerifyMethod)
		if err != nil {
			return nil, err
		}
		opts = append(opts, simulate.WithVerifyRollback(method))
	}
	return simulate.New(s.model, s.conns, opts...), nil
}

// requireVariant checks that a variant is configured.
func (s *session) requireVariant(variant string) error {
	if variant == "" {
		return fmt.Errorf("--variant is required (configured: %v)", s.conns.Variants())
	}
	if _, err := s.cfg.VariantPath(variant); err != nil {
		return fmt.Errorf("%w (configured: %v)", err, s.conns.Variants())
	}
	return nil
}

func (s *session) Close() {
	if err := s.conns.Close(); err != nil {
		s.log.Errorf("Failed to close database connections: %v", err)
	}
	_ = s.log.Sync()
}
