// Package app provides the application service layer.
//
// Orchestrates use cases: observation submission, vote casting, acceptance
// reads, the decay sweep and retention cleanup. Sits between HTTP handlers and
// domain repositories. Depends on domain interfaces, not concrete
// implementations.
package app
