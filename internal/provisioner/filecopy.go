package provisioner

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"CSU/internal/data"
	apperrors "CSU/internal/errors"
	"CSU/internal/logger"
	"CSU/internal/model"
	"CSU/internal/status"
)

// SQLiteDataProvider is the descriptor for the embedded file database driver.
const SQLiteDataProvider = "AssemblyName={System.Data.SQLite, Version=1.0.109.0, Culture=neutral, PublicKeyToken=db937bc2d44ff139}; ConnectionType=System.Data.SQLite.SQLiteConnection; AdapterType=System.Data.SQLite.SQLiteDataAdapter"

// Database image file names below <scripts>/SQLite.
const (
	ImageSchema      = "openPDC.db"
	ImageInitialData = "openPDC-InitialDataSet.db"
	ImageSampleData  = "openPDC-SampleDataSet.db"
)

// FileCopy provisions the embedded database by copying a pre-built image.
type FileCopy struct {
	imageDir string
	reporter status.Reporter
	logger   logger.Logger
	verify   func(ctx context.Context, path string) error
}

// NewFileCopy returns a FileCopy reading images from <scriptsDir>/SQLite.
func NewFileCopy(scriptsDir string, reporter status.Reporter, log logger.Logger) *FileCopy {
	return &FileCopy{
		imageDir: filepath.Join(scriptsDir, "SQLite"),
		reporter: reporter,
		logger:   log,
		verify:   data.VerifySQLite,
	}
}

func (p *FileCopy) Name() string { return "sqlite" }

// SourceDir is where the database images are read from.
func (p *FileCopy) SourceDir() string { return p.imageDir }

// SelectImage returns the most specific image the request asks for.
func SelectImage(req *model.Request) string {
	switch {
	case req.RunsSampleData():
		return ImageSampleData
	case req.RunsInitialData():
		return ImageInitialData
	default:
		return ImageSchema
	}
}

func (p *FileCopy) Provision(ctx context.Context, req *model.Request, state *model.State) (*Result, error) {
	destination := req.SQLite.DestinationPath

	if req.ShouldProvision() {
		source := filepath.Join(p.imageDir, SelectImage(req))

		p.reporter.Progress(2)
		p.reporter.Status("Attempting to copy file %s to %s...", source, destination)

		if err := copyFile(source, destination); err != nil {
			return nil, newProvisionError(apperrors.CodeCopyFailure, "provisioner.FileCopy", "failed to copy database image", err,
				apperrors.Metadata{"source": source, "target": destination})
		}
		if err := p.verify(ctx, destination); err != nil {
			return nil, newProvisionError(apperrors.CodeCopyFailure, "provisioner.FileCopy", "copied database image is unusable", err,
				apperrors.Metadata{"target": destination})
		}

		p.reporter.Progress(95)
		p.reporter.Status("File copy successful.")
		p.reporter.Status("")
		p.logger.InfoContext(ctx, "database image copied", logger.String("source", source), logger.String("target", destination))
	} else if _, err := os.Stat(destination); err != nil {
		p.logger.WarnContext(ctx, "existing database file not found", logger.String("path", destination), logger.Error(err))
	}

	return &Result{
		ConnectionString:   SQLiteConnectionString(destination),
		DataProviderString: SQLiteDataProvider,
		Encrypt:            req.Encrypt,
	}, nil
}

// SQLiteConnectionString builds the connection string for the database file at path.
func SQLiteConnectionString(path string) string {
	return "Data Source=" + path + "; Version=3; Foreign Keys=True; FailIfMissing=True"
}

// copyFile copies a file atomically by writing to a temp file first.
func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

var _ Provisioner = (*FileCopy)(nil)
