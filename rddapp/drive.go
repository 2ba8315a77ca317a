package rddapp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

// Google Workspace MIME types the resolvers look for.
const (
	FolderMimeType      = "application/vnd.google-apps.folder"
	SpreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	ScriptMimeType      = "application/vnd.google-apps.script"
)

// rootFolder is the Drive alias for the top of My Drive.
const rootFolder = "root"

// File is a Drive item returned by a resolver.
type File struct {
	ID      string
	Name    string
	Created bool // false when an existing item was found
}

// SpreadsheetURL returns the browser URL of a spreadsheet.
func SpreadsheetURL(id string) string {
	return "https://docs.google.com/spreadsheets/d/" + id
}

// escapeQueryValue escapes a value for use inside a single-quoted Drive
// query string.
func escapeQueryValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// fileQuery matches non-trashed items with the exact name and MIME type
// directly under parentID.
func fileQuery(name, mimeType, parentID string) string {
	return fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		escapeQueryValue(name), mimeType, escapeQueryValue(parentID))
}

// findFile returns the ID of the first item matching the query, or "" when
// there is none.
func (a *App) findFile(ctx context.Context, name, mimeType, parentID string) (string, error) {
	query := fileQuery(name, mimeType, parentID)
	a.Logger.Debug("searching drive", slog.String("query", query))

	fileList, err := a.DriveService.Files.List().Q(query).PageSize(1).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(fileList.Files) == 0 {
		return "", nil
	}
	return fileList.Files[0].Id, nil
}

// FindOrCreateFolder returns the folder called name under parentID, creating
// it when it does not exist. An empty parentID means the root of My Drive.
func (a *App) FindOrCreateFolder(ctx context.Context, name, parentID string) (*File, error) {
	parent := parentID
	if parent == "" {
		parent = rootFolder
	}

	id, err := a.findFile(ctx, name, FolderMimeType, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to search for folder %q: %w", name, err)
	}
	if id != "" {
		return &File{ID: id, Name: name}, nil
	}

	folder := &drive.File{
		Name:     name,
		MimeType: FolderMimeType,
	}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}

	created, err := a.DriveService.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create folder %q: %w", name, err)
	}
	a.Logger.Info("folder created", slog.String("name", name), slog.String("id", created.Id))
	return &File{ID: created.Id, Name: name, Created: true}, nil
}

// FindOrCreateSpreadsheet returns the spreadsheet called name inside
// folderID. A missing spreadsheet is created through the Sheets API, which
// always puts it in My Drive, and then moved into the folder.
func (a *App) FindOrCreateSpreadsheet(ctx context.Context, name, folderID string) (*File, error) {
	id, err := a.findFile(ctx, name, SpreadsheetMimeType, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to search for spreadsheet %q: %w", name, err)
	}
	if id != "" {
		return &File{ID: id, Name: name}, nil
	}

	spreadsheet, err := a.SheetsService.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: name},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create spreadsheet %q: %w", name, err)
	}
	a.Logger.Info("spreadsheet created", slog.String("name", name), slog.String("id", spreadsheet.SpreadsheetId))

	if err := a.MoveToFolder(ctx, spreadsheet.SpreadsheetId, folderID); err != nil {
		return nil, err
	}
	return &File{ID: spreadsheet.SpreadsheetId, Name: name, Created: true}, nil
}

// MoveToFolder makes folderID the only parent of fileID.
func (a *App) MoveToFolder(ctx context.Context, fileID, folderID string) error {
	file, err := a.DriveService.Files.Get(fileID).Fields("parents").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to get parents of %s: %w", fileID, err)
	}

	var previous []string
	for _, p := range file.Parents {
		if p != folderID {
			previous = append(previous, p)
		}
	}

	call := a.DriveService.Files.Update(fileID, &drive.File{}).AddParents(folderID).Fields("id", "parents")
	if len(previous) > 0 {
		call = call.RemoveParents(strings.Join(previous, ","))
	}
	if _, err := call.Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to move %s into folder %s: %w", fileID, folderID, err)
	}

	a.Logger.Debug("file moved",
		slog.String("id", fileID),
		slog.String("folder", folderID),
		slog.Any("removed", previous),
	)
	return nil
}
