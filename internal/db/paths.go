package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DataDir is the per-project data directory name.
	DataDir = ".envlog"
	// DBFile is the database filename inside DataDir.
	DBFile = "envlog.db"
	// ConfigFile is the project config filename inside DataDir.
	ConfigFile = "config.json"
	// TemplatesDir holds project report templates inside DataDir.
	TemplatesDir = "templates"

	// EnvDB overrides the database path.
	EnvDB = "ENVLOG_DB"
)

// ErrNoProject means neither the working directory nor any parent holds DataDir.
var ErrNoProject = errors.New("not inside an envlog project")

// Project is an envlog data directory and the files it holds.
type Project struct {
	Dir string
}

func (p Project) DB() string        { return filepath.Join(p.Dir, DBFile) }
func (p Project) Config() string    { return filepath.Join(p.Dir, ConfigFile) }
func (p Project) Templates() string { return filepath.Join(p.Dir, TemplatesDir) }

// ProjectHere is the project rooted at the working directory, whether or
// not it has been initialized.
func ProjectHere() (Project, error) {
	wd, err := os.Getwd()
	if err != nil {
		return Project{}, fmt.Errorf("failed to get working directory: %w", err)
	}
	return Project{Dir: filepath.Join(wd, DataDir)}, nil
}

// FindProject returns the nearest project at or above the working directory.
func FindProject() (Project, error) {
	here, err := ProjectHere()
	if err != nil {
		return Project{}, err
	}
	start := filepath.Dir(here.Dir)
	for dir := start; ; {
		p := Project{Dir: filepath.Join(dir, DataDir)}
		info, err := os.Stat(p.Dir)
		switch {
		case err == nil && info.IsDir():
			return p, nil
		case err == nil:
			return Project{}, fmt.Errorf("%s exists but is not a directory", p.Dir)
		case !os.IsNotExist(err):
			return Project{}, fmt.Errorf("failed to check %s: %w", p.Dir, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Project{}, fmt.Errorf("%w: no %s in %s or above. Run 'envlog init' first", ErrNoProject, DataDir, start)
		}
		dir = parent
	}
}

// FindDataDir returns the data directory of the nearest project.
func FindDataDir() (string, error) {
	p, err := FindProject()
	if err != nil {
		return "", err
	}
	return p.Dir, nil
}

// DefaultPath returns $ENVLOG_DB when set, else the nearest project's database.
func DefaultPath() (string, error) {
	if envPath := os.Getenv(EnvDB); envPath != "" {
		return envPath, nil
	}
	p, err := FindProject()
	if err != nil {
		return "", err
	}
	return p.DB(), nil
}
