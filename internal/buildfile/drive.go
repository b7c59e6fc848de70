// File path: internal/buildfile/drive.go
package buildfile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveStore implements Store on Google Drive folders and a Google Sheets
// build file copied from a fixed template.
type DriveStore struct {
	drive          *drive.Service
	sheets         *sheets.Service
	rootFolderID   string
	templateFileID string
}

// NewDriveStore builds a DriveStore from an authenticated HTTP client.
func NewDriveStore(ctx context.Context, httpClient *http.Client, rootFolderID, templateFileID string) (*DriveStore, error) {
	driveSvc, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	sheetsSvc, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &DriveStore{
		drive:          driveSvc,
		sheets:         sheetsSvc,
		rootFolderID:   rootFolderID,
		templateFileID: templateFileID,
	}, nil
}

// FindArtifact walks the structural path company folder -> leader folder ->
// named file. Any missing link means the artifact does not exist.
func (s *DriveStore) FindArtifact(ctx context.Context, leaderKey, company string) (*Artifact, error) {
	folderID, err := s.findLeaderFolder(ctx, leaderKey, company, false)
	if err != nil || folderID == "" {
		return nil, err
	}
	fileID, err := s.findChild(ctx, folderID, FileName(leaderKey), "")
	if err != nil || fileID == "" {
		return nil, err
	}
	return &Artifact{ID: fileID, FolderID: folderID, Name: FileName(leaderKey)}, nil
}

// CreateArtifact copies the template into the leader's folder, creating the
// company and leader folders as needed.
func (s *DriveStore) CreateArtifact(ctx context.Context, leaderKey, company string) (*Artifact, error) {
	folderID, err := s.findLeaderFolder(ctx, leaderKey, company, true)
	if err != nil {
		return nil, err
	}
	name := FileName(leaderKey)
	file, err := s.drive.Files.Copy(s.templateFileID, &drive.File{
		Name:    name,
		Parents: []string{folderID},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("copy template for %s: %w", leaderKey, err)
	}
	return &Artifact{ID: file.Id, FolderID: folderID, Name: name}, nil
}

// ArtifactByID fetches the file behind a recorded id. A 404 or a trashed
// file reports nil so callers can fall back to the structural search.
func (s *DriveStore) ArtifactByID(ctx context.Context, id string) (*Artifact, error) {
	file, err := s.drive.Files.Get(id).Fields("id", "name", "parents", "trashed").Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch artifact %s: %w", id, err)
	}
	if file.Trashed {
		return nil, nil
	}
	artifact := &Artifact{ID: file.Id, Name: file.Name}
	if len(file.Parents) > 0 {
		artifact.FolderID = file.Parents[0]
	}
	return artifact, nil
}

// GetField reads one cell of the build file.
func (s *DriveStore) GetField(ctx context.Context, artifactID, sheet, cell string) (string, error) {
	rangeRef := fmt.Sprintf("%s!%s", sheet, cell)
	resp, err := s.sheets.Spreadsheets.Values.Get(artifactID, rangeRef).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s of %s: %w", rangeRef, artifactID, err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(resp.Values[0][0]), nil
}

// SetField writes one cell of the build file.
func (s *DriveStore) SetField(ctx context.Context, artifactID, sheet, cell, value string) error {
	rangeRef := fmt.Sprintf("%s!%s", sheet, cell)
	_, err := s.sheets.Spreadsheets.Values.Update(artifactID, rangeRef, &sheets.ValueRange{
		Values: [][]interface{}{{value}},
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s of %s: %w", rangeRef, artifactID, err)
	}
	return nil
}

// findLeaderFolder resolves (optionally creating) the folder chain. With an
// empty company the leader folder hangs directly off the root.
func (s *DriveStore) findLeaderFolder(ctx context.Context, leaderKey, company string, create bool) (string, error) {
	parentID := s.rootFolderID
	if strings.TrimSpace(company) != "" {
		companyID, err := s.findChild(ctx, parentID, company, folderMimeType)
		if err != nil {
			return "", err
		}
		if companyID == "" {
			if !create {
				return "", nil
			}
			companyID, err = s.createFolder(ctx, parentID, company)
			if err != nil {
				return "", err
			}
		}
		parentID = companyID
	}
	leaderID, err := s.findChild(ctx, parentID, leaderKey, folderMimeType)
	if err != nil {
		return "", err
	}
	if leaderID == "" {
		if !create {
			return "", nil
		}
		leaderID, err = s.createFolder(ctx, parentID, leaderKey)
		if err != nil {
			return "", err
		}
	}
	return leaderID, nil
}

func (s *DriveStore) findChild(ctx context.Context, parentID, name, mimeType string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), parentID)
	if mimeType != "" {
		query += fmt.Sprintf(" and mimeType = '%s'", mimeType)
	}
	list, err := s.drive.Files.List().Q(query).Fields("files(id, name)").PageSize(2).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search %q under %s: %w", name, parentID, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (s *DriveStore) createFolder(ctx context.Context, parentID, name string) (string, error) {
	folder, err := s.drive.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return folder.Id, nil
}

func escapeQuery(value string) string {
	return strings.ReplaceAll(value, "'", "\\'")
}
