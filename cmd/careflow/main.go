// Command careflow is the terminal client for the clinical VLM workflow
// backend: nurses register patients and create sessions, doctors work the
// review queue, admins watch the dashboard.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/careflow/careflow/internal/config"
	"github.com/careflow/careflow/internal/domain/dashboard"
	"github.com/careflow/careflow/internal/domain/doctor"
	"github.com/careflow/careflow/internal/domain/patient"
	"github.com/careflow/careflow/internal/domain/session"
	"github.com/careflow/careflow/internal/domain/user"
	"github.com/careflow/careflow/internal/platform/api"
	"github.com/careflow/careflow/internal/platform/authz"
	"github.com/careflow/careflow/internal/platform/cache"
	"github.com/careflow/careflow/internal/platform/identity"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "careflow",
		Short:        "Clinical VLM workflow client",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(patientCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(demoCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wired client stack shared by the commands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	ids      *identity.Store
	cache    *cache.Cache
	users    *user.Client
	patients *patient.Client
	sessions *session.Client
	doctors  *doctor.Client
	dash     *dashboard.Client
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newAppWith(cfg)
}

func newAppWith(cfg *config.Config) (*app, error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	ids := identity.NewStoreFromFile(cfg.TokenFile)
	store := cache.New(logger)
	apiClient := api.New(cfg.APIBaseURL, cfg.HTTPTimeout(), ids, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		ids:      ids,
		cache:    store,
		users:    user.NewClient(apiClient, ids, store, logger),
		patients: patient.NewClient(apiClient, store, logger),
		sessions: session.NewClient(apiClient, store, logger),
		doctors:  doctor.NewClient(apiClient, store, logger),
		dash:     dashboard.NewClient(apiClient, store, logger),
	}, nil
}

// requireRoute gates a command on the role matrix before any network call.
func (a *app) requireRoute(route authz.Route) error {
	switch authz.Authorize(a.ids.Current(), route) {
	case authz.Granted:
		return nil
	case authz.RedirectLogin:
		return fmt.Errorf("not logged in; run `careflow login` first")
	default:
		ident := a.ids.Current()
		return fmt.Errorf("role %s is not allowed here", ident.Role)
	}
}
