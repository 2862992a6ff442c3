// Package inmemdb keeps every table in memory. It backs tests and local runs without PostgreSQL.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/exam"
	"github.com/trezcool/examhall/core/grader"
	"github.com/trezcool/examhall/core/grading"
	"github.com/trezcool/examhall/core/participant"
	"github.com/trezcool/examhall/core/submission"
)

type (
	DB struct {
		sync.RWMutex // guards tables
		tables

		txMu sync.Mutex // serializes units of work
	}

	tables struct {
		participants map[int]participant.Participant
		submissions  map[int]submission.Submission
		scores       map[int]grading.Score
		resolved     map[int]grading.ResolvedScore // {submission id: resolved}
		papers       map[int]exam.ExamPaper
		graders      map[string]grader.Grader
		pkCount      int
	}
)

func Open() *DB {
	return &DB{tables: tables{
		participants: make(map[int]participant.Participant),
		submissions:  make(map[int]submission.Submission),
		scores:       make(map[int]grading.Score),
		resolved:     make(map[int]grading.ResolvedScore),
		papers:       make(map[int]exam.ExamPaper),
		graders:      make(map[string]grader.Grader),
	}}
}

// Reset empties every table.
func (db *DB) Reset() {
	fresh := Open()
	db.Lock()
	db.tables = fresh.tables
	db.Unlock()
}

func (db *DB) nextPK() int {
	db.pkCount++
	return db.pkCount
}

func (t tables) clone() tables {
	c := tables{
		participants: make(map[int]participant.Participant, len(t.participants)),
		submissions:  make(map[int]submission.Submission, len(t.submissions)),
		scores:       make(map[int]grading.Score, len(t.scores)),
		resolved:     make(map[int]grading.ResolvedScore, len(t.resolved)),
		papers:       make(map[int]exam.ExamPaper, len(t.papers)),
		graders:      make(map[string]grader.Grader, len(t.graders)),
		pkCount:      t.pkCount,
	}
	for k, v := range t.participants {
		c.participants[k] = v
	}
	for k, v := range t.submissions {
		c.submissions[k] = v
	}
	for k, v := range t.scores {
		c.scores[k] = v
	}
	for k, v := range t.resolved {
		c.resolved[k] = v
	}
	for k, v := range t.papers {
		c.papers[k] = v
	}
	for k, v := range t.graders {
		c.graders[k] = v
	}
	return c
}

type txRunner struct {
	db *DB
}

var _ core.TxRunner = (*txRunner)(nil)

// NewTxRunner runs units of work one at a time; the tables are restored when fn fails.
// Writes made outside a unit of work while it runs are lost on restore.
func NewTxRunner(db *DB) core.TxRunner {
	return &txRunner{db: db}
}

func (r *txRunner) InTx(_ context.Context, fn func(exec core.DBExecutor) error) (err error) {
	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()

	r.db.RLock()
	snapshot := r.db.tables.clone()
	r.db.RUnlock()

	defer func() {
		p := recover()
		if err != nil || p != nil {
			r.db.Lock()
			r.db.tables = snapshot
			r.db.Unlock()
		}
		if p != nil {
			panic(p)
		}
	}()
	return fn(nil)
}
