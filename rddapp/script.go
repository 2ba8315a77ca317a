package rddapp

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/script/v1"
)

// ScriptURL returns the editor URL of an Apps Script project.
func ScriptURL(id string) string {
	return "https://script.google.com/d/" + id + "/edit"
}

// FindOrCreateLibrary returns the Apps Script project called name inside
// folderID. When it does not exist, a standalone project is created in My
// Drive and then moved into folderID; its script ID is its Drive file ID.
//
// Creating projects requires the Apps Script API to be enabled both in the
// Cloud project and in the user settings at https://script.google.com/home/usersettings.
func (a *App) FindOrCreateLibrary(ctx context.Context, name, folderID string) (*File, error) {
	id, err := a.findFile(ctx, name, ScriptMimeType, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to search for script project %q: %w", name, err)
	}
	if id != "" {
		return &File{ID: id, Name: name}, nil
	}

	// ParentId binds a project to a document, so it stays empty here.
	project, err := a.ScriptService.Projects.Create(&script.CreateProjectRequest{
		Title: name,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create script project %q: %w", name, err)
	}
	a.Logger.Info("script project created", slog.String("name", name), slog.String("id", project.ScriptId))

	if err := a.MoveToFolder(ctx, project.ScriptId, folderID); err != nil {
		return nil, err
	}
	return &File{ID: project.ScriptId, Name: name, Created: true}, nil
}
