package rddapp

import (
	"context"
	"log/slog"
)

// Kinds of resources reported to a Reporter.
const (
	KindFolder   = "folder"
	KindTemplate = "template"
	KindLibrary  = "library"
)

// Reporter receives the progress of a provisioning run as it happens.
type Reporter interface {
	// Resolved is called once per resource, found or created.
	Resolved(kind string, f *File)
	// Failed is called when a step aborts the run.
	Failed(step string, err error)
}

// Result holds the resources a run ended up with.
type Result struct {
	Folder   *File
	Template *File
	// Library is nil unless the library step ran.
	Library *File
}

// TemplateURL returns the browser URL of the template spreadsheet.
func (r *Result) TemplateURL() string {
	return SpreadsheetURL(r.Template.ID)
}

// Provision finds or creates the folder, then the template spreadsheet inside
// it, then the library project when cfg.CreateLibrary is set. The first
// failing step stops the run and is returned as a *StepError.
func (a *App) Provision(ctx context.Context, cfg *Config, rep Reporter) (*Result, error) {
	res := &Result{}

	folder, err := a.FindOrCreateFolder(ctx, cfg.FolderName, cfg.ParentID)
	if err != nil {
		return nil, a.fail(rep, "creating the folder", err)
	}
	rep.Resolved(KindFolder, folder)
	res.Folder = folder

	template, err := a.FindOrCreateSpreadsheet(ctx, cfg.TemplateName, folder.ID)
	if err != nil {
		return nil, a.fail(rep, "creating the template", err)
	}
	rep.Resolved(KindTemplate, template)
	res.Template = template

	if cfg.CreateLibrary {
		library, err := a.FindOrCreateLibrary(ctx, cfg.LibraryName, folder.ID)
		if err != nil {
			return nil, a.fail(rep, "creating the library", err)
		}
		rep.Resolved(KindLibrary, library)
		res.Library = library
	}

	return res, nil
}

func (a *App) fail(rep Reporter, step string, err error) error {
	a.Logger.Error("provisioning step failed",
		slog.String("step", step),
		slog.String("status", apiStatus(err)),
		slog.String("error", err.Error()),
	)
	rep.Failed(step, err)
	return &StepError{Step: step, Err: err}
}
