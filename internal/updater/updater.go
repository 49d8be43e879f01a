// Package updater implements the self-update and rollback orchestrator: it
// pulls new code from the remote repository, rebuilds the deployment in
// place, snapshots the working tree and database beforehand, and can restore
// a previous snapshot. Progress streams step by step to the requesting admin
// and a single-flight gate prevents overlapping runs.
package updater

import (
	"github.com/zedmarley2/pars-tabela-sub000/internal/config"
	"gorm.io/gorm"
)

// Orchestrator owns the gate, the command runner, and the persistence handle
// for update/rollback runs. One long-lived instance serves the whole process;
// tests construct independent instances.
type Orchestrator struct {
	cfg    *config.Config
	db     *gorm.DB
	runner Runner
	gate   *Gate
}

func New(cfg *config.Config, db *gorm.DB) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		db:     db,
		runner: NewRunner(cfg.ProjectRoot),
		gate:   &Gate{},
	}
}

// Gate exposes the single-flight lock to the HTTP boundary
func (o *Orchestrator) Gate() *Gate {
	return o.gate
}
