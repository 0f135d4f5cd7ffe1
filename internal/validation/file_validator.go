package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "staats/internal/errors"
)

// Extensions accepted for each kind of input file
var (
	DataExtensions     = []string{".csv", ".txt", ".xlsx", ".xlsm"}
	ProjectExtensions  = []string{".json", ".yaml", ".yml", ".xlsx", ".xlsm"}
	WorkbookExtensions = []string{".xlsx", ".xlsm"}
)

// FileValidator checks the files a command reads and writes before any
// work starts
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateFile checks that path is an existing, readable regular file
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return apperrors.NewNotFoundError(fmt.Sprintf("file %s", path))
	}
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("stat %s", path), err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return apperrors.NewConfigError(fmt.Sprintf("%s is a directory, not a file", path), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("file %s is not readable", path), err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateInput checks that path is readable and carries one of the
// extensions. Office lock files (~$name.xlsx) are refused.
func (v *FileValidator) ValidateInput(path string, extensions []string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !contains(extensions, ext) {
		return apperrors.NewConfigError(fmt.Sprintf("unsupported file %s (expected %s)", path, strings.Join(extensions, ", ")), nil)
	}
	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Refusing temporary Excel file",
			slog.String("file", path))
		return apperrors.NewConfigError(fmt.Sprintf("%s is a temporary Excel file", path), nil)
	}
	return v.ValidateFile(path)
}

// ValidateOutputDirectory ensures dir exists or can be created and is
// writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("create output directory %s", dir), err)
	}

	file, err := os.CreateTemp(dir, ".staats-write-test-*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	name := file.Name()
	file.Close()
	os.Remove(name)

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// ValidateOutput checks an output file path: its extension and the
// directory that will hold it. An existing directory at path is refused.
func (v *FileValidator) ValidateOutput(path string, extensions []string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !contains(extensions, ext) {
		return apperrors.NewConfigError(fmt.Sprintf("unsupported output %s (expected %s)", path, strings.Join(extensions, ", ")), nil)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return apperrors.NewConfigError(fmt.Sprintf("%s is a directory, not a file", path), nil)
	}
	return v.ValidateOutputDirectory(filepath.Dir(path))
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
