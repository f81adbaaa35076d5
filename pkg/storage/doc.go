// Package storage provides durable storage for generated and manual answers.
//
// This package includes:
//   - GormStorage: a GORM-based implementation of core.Storage and
//     core.JobJournal supporting SQLite and PostgreSQL
//   - Pool configuration helpers for the underlying *sql.DB
//
// Most users should import the root package
// github.com/jdziat/questionnaire-autoanswer which provides NewGormStorage().
package storage
