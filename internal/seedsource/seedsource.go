// Package seedsource provisions the fallback glossary. The seed content
// repository carries terms.json and formulas.json; on a first run with no
// connectivity these give the app something to show instead of an empty
// store. Seeds only ever fill empty mirrors - synced data is never
// overwritten by a seed.
package seedsource

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"github.com/conorfennell/archpad/internal/domain"
)

// Store is the slice of the local store provisioning writes through.
type Store interface {
	GetAllTerms() ([]domain.Term, error)
	PutTerm(domain.Term) error
	GetAllFormulas() ([]domain.Formula, error)
	PutFormula(domain.Formula) error
}

// Sync clones the seed content repository if it doesn't exist at the given
// path, or pulls the latest changes if it does.
func Sync(url, localPath string) error {
	_, err := os.Stat(localPath)
	if os.IsNotExist(err) {
		slog.Info("cloning seed repository", "url", url, "path", localPath)
		_, err := git.PlainClone(localPath, false, &git.CloneOptions{
			URL: url,
		})
		if err != nil {
			return fmt.Errorf("failed to clone seed repo %s: %w", url, err)
		}
	} else if err == nil {
		slog.Info("pulling seed repository", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open seed repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for seed repo at %s: %w", localPath, err)
		}

		err = worktree.Pull(&git.PullOptions{RemoteName: "origin"})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("failed to pull seed repo at %s: %w", localPath, err)
		}
	} else {
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	return nil
}

// Load reads terms.json and formulas.json from the seed working tree. A
// missing file yields an empty slice, not an error; a seed repo may carry
// only one of the two.
func Load(dir string) ([]domain.Term, []domain.Formula, error) {
	var terms []domain.Term
	if err := loadJSON(filepath.Join(dir, "terms.json"), &terms); err != nil {
		return nil, nil, err
	}
	var formulas []domain.Formula
	if err := loadJSON(filepath.Join(dir, "formulas.json"), &formulas); err != nil {
		return nil, nil, err
	}
	return terms, formulas, nil
}

func loadJSON(path string, out any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return nil
}

// Provision puts seed records into the local mirrors, but only for
// collections that are still empty.
func Provision(store Store, dir string) error {
	terms, formulas, err := Load(dir)
	if err != nil {
		return err
	}

	existing, err := store.GetAllTerms()
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		for _, t := range terms {
			if err := store.PutTerm(t); err != nil {
				return err
			}
		}
		if len(terms) > 0 {
			slog.Info("provisioned seed terms", "count", len(terms))
		}
	}

	existingFormulas, err := store.GetAllFormulas()
	if err != nil {
		return err
	}
	if len(existingFormulas) == 0 {
		for _, f := range formulas {
			if err := store.PutFormula(f); err != nil {
				return err
			}
		}
		if len(formulas) > 0 {
			slog.Info("provisioned seed formulas", "count", len(formulas))
		}
	}

	return nil
}
