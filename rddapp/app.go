package rddapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/script/v1"
	"google.golang.org/api/sheets/v4"
)

// App holds the authenticated Google API services used by a provisioning run.
type App struct {
	DriveService  *drive.Service
	SheetsService *sheets.Service
	ScriptService *script.Service
	Logger        *slog.Logger
}

// New creates an App whose requests are authorized by ts and paced according
// to cfg. All three services share one HTTP client. opts are applied to every
// service after the client, for example to point them at another endpoint.
func New(ctx context.Context, cfg *Config, ts oauth2.TokenSource, logger *slog.Logger, opts ...option.ClientOption) (*App, error) {
	paced := &http.Client{Transport: newPacedTransport(nil, cfg.RequestsPerSecond, cfg.Burst)}
	httpClient := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, paced), ts)
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create drive service: %w", err)
	}
	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create sheets service: %w", err)
	}
	scriptService, err := script.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create apps script service: %w", err)
	}

	return &App{
		DriveService:  driveService,
		SheetsService: sheetsService,
		ScriptService: scriptService,
		Logger:        logger,
	}, nil
}
