package validation

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "staats/internal/errors"
)

func quietValidator() *FileValidator {
	return NewFileValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func errType(t *testing.T, err error) apperrors.ErrorType {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected *AppError, got %T", err)
	return appErr.Type
}

func TestFileValidator_ValidateInput(t *testing.T) {
	tests := []struct {
		name       string
		setupFunc  func(t *testing.T) string
		extensions []string
		wantType   apperrors.ErrorType
	}{
		{
			name: "csv data file",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "survey.csv")
				require.NoError(t, os.WriteFile(path, []byte("Age\n30\n"), 0o644))
				return path
			},
			extensions: DataExtensions,
		},
		{
			name: "upper case extension",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "STAATS.XLSM")
				require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))
				return path
			},
			extensions: ProjectExtensions,
		},
		{
			name: "missing file",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.csv")
			},
			extensions: DataExtensions,
			wantType:   apperrors.ErrTypeNotFound,
		},
		{
			name: "directory",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "data.csv")
				require.NoError(t, os.Mkdir(path, 0o755))
				return path
			},
			extensions: DataExtensions,
			wantType:   apperrors.ErrTypeConfig,
		},
		{
			name: "wrong extension",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "project.toml")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
				return path
			},
			extensions: ProjectExtensions,
			wantType:   apperrors.ErrTypeConfig,
		},
		{
			name: "excel lock file",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "~$STAATS.xlsx")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
				return path
			},
			extensions: WorkbookExtensions,
			wantType:   apperrors.ErrTypeConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := quietValidator().ValidateInput(tt.setupFunc(t), tt.extensions)
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errType(t, err))
		})
	}
}

func TestFileValidator_ValidateOutput(t *testing.T) {
	v := quietValidator()

	t.Run("creates parent directories", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out", "nested")
		require.NoError(t, v.ValidateOutput(filepath.Join(dir, "tables.xlsx"), []string{".xlsx"}))

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "write test file must be removed")
	})

	t.Run("wrong extension", func(t *testing.T) {
		err := v.ValidateOutput(filepath.Join(t.TempDir(), "tables.pdf"), []string{".xlsx"})
		assert.Equal(t, apperrors.ErrTypeConfig, errType(t, err))
	})

	t.Run("directory in the way", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tables.csv")
		require.NoError(t, os.Mkdir(path, 0o755))
		err := v.ValidateOutput(path, []string{".csv"})
		assert.Equal(t, apperrors.ErrTypeConfig, errType(t, err))
	})

	t.Run("parent is a file", func(t *testing.T) {
		parent := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))
		err := v.ValidateOutput(filepath.Join(parent, "tables.csv"), []string{".csv"})
		assert.Equal(t, apperrors.ErrTypeStorage, errType(t, err))
	})
}
